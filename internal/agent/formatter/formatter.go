// Package formatter asks a chat model to turn OCR text into HTML.
package formatter

import "context"

// Formatter returns the model's HTML for text, or "" when the model produced
// nothing usable.
type Formatter interface {
	Name() string
	Format(ctx context.Context, text string) (string, error)
}

type FormatterFunc func(ctx context.Context, text string) (string, error)

func (f FormatterFunc) Name() string { return "func" }

func (f FormatterFunc) Format(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}
