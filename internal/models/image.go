package models

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// UploadedImage is the image held by a session. DataURL is what the page
// previews; Payload is what the OCR backend receives.
type UploadedImage struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	DataURL  string `json:"dataUrl"`
}

// NewDataURL encodes data as a base64 data URL.
func NewDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Payload returns the data URL with its header stripped.
func (i *UploadedImage) Payload() string {
	_, payload, ok := strings.Cut(i.DataURL, ",")
	if !ok {
		return ""
	}
	return payload
}

// Bytes decodes the payload.
func (i *UploadedImage) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(i.Payload())
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}
	return data, nil
}
