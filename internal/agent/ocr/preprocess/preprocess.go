// Package preprocess prepares images for local OCR engines.
package preprocess

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Step transforms an image.
type Step interface {
	Process(img image.Image) (image.Image, error)
}

type StepFunc func(img image.Image) (image.Image, error)

func (f StepFunc) Process(img image.Image) (image.Image, error) { return f(img) }

type Options struct {
	MaxWidth int     // 0 keeps the original width
	Contrast float64 // percentage, -100..100
	Sharpen  float64 // sigma, 0 disables
}

// Chain runs steps in order and fails on the first error or nil result.
type Chain []Step

// NewChain builds grayscale → fit → contrast → sharpen.
func NewChain(opts Options) Chain {
	chain := Chain{Grayscale()}
	if opts.MaxWidth > 0 {
		chain = append(chain, FitWidth(opts.MaxWidth))
	}
	if opts.Contrast != 0 {
		chain = append(chain, Contrast(opts.Contrast))
	}
	if opts.Sharpen > 0 {
		chain = append(chain, Sharpen(opts.Sharpen))
	}
	return chain
}

func (c Chain) Process(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}
	var err error
	out := img
	for i, step := range c {
		out, err = step.Process(out)
		if err != nil {
			return nil, fmt.Errorf("preprocessing step %d failed: %w", i, err)
		}
		if out == nil {
			return nil, fmt.Errorf("preprocessing step %d returned nil image", i)
		}
	}
	return out, nil
}

func Grayscale() Step {
	return StepFunc(func(img image.Image) (image.Image, error) {
		return imaging.Grayscale(img), nil
	})
}

// FitWidth downscales images wider than width, keeping the aspect ratio.
func FitWidth(width int) Step {
	return StepFunc(func(img image.Image) (image.Image, error) {
		if img.Bounds().Dx() <= width {
			return img, nil
		}
		return imaging.Resize(img, width, 0, imaging.Lanczos), nil
	})
}

func Contrast(percentage float64) Step {
	return StepFunc(func(img image.Image) (image.Image, error) {
		return imaging.AdjustContrast(img, percentage), nil
	})
}

func Sharpen(sigma float64) Step {
	return StepFunc(func(img image.Image) (image.Image, error) {
		return imaging.Sharpen(img, sigma), nil
	})
}
