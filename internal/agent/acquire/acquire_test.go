package acquire

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/image-to-html/internal/models"
	"github.com/feichai0017/image-to-html/internal/utils/validator"
	"github.com/feichai0017/image-to-html/pkg/logger"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newAcquirer(maxSize int64) *Acquirer {
	return New(validator.NewImageValidator(logger.NewTestLogger(), &validator.ValidatorConfig{
		MaxFileSize:  maxSize,
		AllowedTypes: []string{"image/png", "image/jpeg"},
	}))
}

func failureCode(t *testing.T, err error, code string) {
	t.Helper()
	var failure *validator.Failure
	require.True(t, errors.As(err, &failure), "got %v", err)
	assert.True(t, failure.Has(code), "codes: %+v", failure.Errors)
}

func TestFromReaderBuildsDataURL(t *testing.T) {
	data := pngBytes(t, 4, 3)

	img, err := newAcquirer(1 << 20).FromReader(bytes.NewReader(data), "scan.png")
	require.NoError(t, err)

	assert.Equal(t, "scan.png", img.Filename)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, int64(len(data)), img.Size)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 3, img.Height)
	assert.True(t, strings.HasPrefix(img.DataURL, "data:image/png;base64,"))

	decoded, err := img.Bytes()
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestFromReaderRejectsOversize(t *testing.T) {
	data := pngBytes(t, 32, 32)

	_, err := newAcquirer(int64(len(data)-1)).FromReader(bytes.NewReader(data), "big.png")
	failureCode(t, err, validator.CodeFileTooLarge)
}

func TestFromReaderRejectsNonImage(t *testing.T) {
	_, err := newAcquirer(1024).FromReader(strings.NewReader("%PDF-1.7\n..."), "doc.pdf")
	failureCode(t, err, validator.CodeInvalidFileType)
}

func TestFromReaderRejectsEmpty(t *testing.T) {
	_, err := newAcquirer(1024).FromReader(strings.NewReader(""), "empty.png")
	failureCode(t, err, validator.CodeEmptyFile)
}

func TestFromReaderReportsReadFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	_, err := newAcquirer(1024).FromReader(iotest.ErrReader(boom), "a.png")
	assert.ErrorIs(t, err, boom)
}

func TestFromDataURL(t *testing.T) {
	a := newAcquirer(1 << 20)
	src := models.NewDataURL("image/jpeg", pngBytes(t, 2, 2))

	img, err := a.FromDataURL(src, "pasted")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType, "sniffed type wins over the declared one")

	_, err = a.FromDataURL("data:image/png;base64,AAAA", "x")
	failureCode(t, err, validator.CodeInvalidFileType)

	_, err = a.FromDataURL("not a data url", "x")
	assert.ErrorIs(t, err, ErrMalformedDataURL)

	_, err = a.FromDataURL("data:image/png;base64,@@@", "x")
	assert.ErrorIs(t, err, ErrMalformedDataURL)
}
