package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/feichai0017/image-to-html/internal/agent/acquire"
	"github.com/feichai0017/image-to-html/internal/models"
	"github.com/feichai0017/image-to-html/internal/utils/validator"
	"github.com/feichai0017/image-to-html/pkg/converters"
	"github.com/feichai0017/image-to-html/pkg/storage"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", storage.ErrNotFound), http.StatusNotFound},
		{&validator.Failure{Errors: []validator.ValidationError{{Code: validator.CodeFileTooLarge}}}, http.StatusRequestEntityTooLarge},
		{&validator.Failure{Errors: []validator.ValidationError{{Code: validator.CodeInvalidMimeType}}}, http.StatusBadRequest},
		{acquire.ErrMalformedDataURL, http.StatusBadRequest},
		{errors.Join(models.ErrNoImage, errors.New("no file")), http.StatusBadRequest},
		{errors.New("redis: connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestNewPageView(t *testing.T) {
	conv := converters.NewHTMLConverter()
	s := models.NewSession("abc", time.Now())

	v := NewPageView(s, conv, 2)
	assert.False(t, v.ShowProgress)
	assert.Empty(t, v.PreviewURL)
	assert.Empty(t, v.Output)

	_ = s.SelectImage(&models.UploadedImage{Filename: "a.png", DataURL: "data:image/png;base64,AAAA"})
	gen, _ := s.Begin()
	v = NewPageView(s, conv, 2)
	assert.True(t, v.ShowProgress)
	assert.Equal(t, 2, v.RefreshSeconds)
	assert.Equal(t, template.URL("data:image/png;base64,AAAA"), v.PreviewURL)

	_ = s.Complete(gen, `<p onclick="x()">done</p>`)
	v = NewPageView(s, conv, 2)
	assert.False(t, v.ShowProgress)
	assert.Equal(t, template.HTML("<p>done</p>"), v.Output)
}
