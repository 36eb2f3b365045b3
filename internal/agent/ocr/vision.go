package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/feichai0017/image-to-html/internal/models"
	"github.com/feichai0017/image-to-html/pkg/logger"
)

const featureTextDetection = "TEXT_DETECTION"

type visionRequest struct {
	Requests []visionImageRequest `json:"requests"`
}

type visionImageRequest struct {
	Image    visionImage     `json:"image"`
	Features []visionFeature `json:"features"`
}

type visionImage struct {
	Content string `json:"content"`
}

type visionFeature struct {
	Type string `json:"type"`
}

type visionResponse struct {
	Responses []visionImageResponse `json:"responses"`
}

type visionImageResponse struct {
	FullTextAnnotation *struct {
		Text string `json:"text"`
	} `json:"fullTextAnnotation,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type VisionConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// VisionClient calls the Google Cloud Vision images:annotate REST endpoint.
type VisionClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     logger.Logger
}

func NewVisionClient(cfg VisionConfig, log logger.Logger) *VisionClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &VisionClient{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.Named("vision"),
	}
}

func (c *VisionClient) Name() string { return "vision" }

func (c *VisionClient) DetectText(ctx context.Context, img *models.UploadedImage) (string, error) {
	reqData, err := json.Marshal(visionRequest{
		Requests: []visionImageRequest{{
			Image:    visionImage{Content: img.Payload()},
			Features: []visionFeature{{Type: featureTextDetection}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid vision endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("key", c.apiKey)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(reqData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var result visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Responses) == 0 {
		return "", nil
	}
	first := result.Responses[0]
	if first.Error != nil {
		c.logger.Warn("Vision reported an image error",
			logger.Int("code", first.Error.Code),
			logger.String("message", first.Error.Message),
		)
	}
	if first.FullTextAnnotation == nil {
		return "", nil
	}
	return first.FullTextAnnotation.Text, nil
}

func (c *VisionClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
