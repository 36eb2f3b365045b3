package formatter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/feichai0017/image-to-html/pkg/logger"
)

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

// ollamaChatResponse is the non-streaming /api/chat reply.
type ollamaChatResponse struct {
	Model         string         `json:"model"`
	Message       *ollamaMessage `json:"message,omitempty"`
	Done          bool           `json:"done"`
	TotalDuration int64          `json:"total_duration,omitempty"`
	EvalCount     int            `json:"eval_count,omitempty"`
	Error         string         `json:"error,omitempty"`
}

type OllamaConfig struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

type OllamaFormatter struct {
	endpoint   string
	model      string
	prompt     Prompt
	httpClient *http.Client
	logger     logger.Logger
}

func NewOllamaFormatter(cfg OllamaConfig, prompt Prompt, log logger.Logger) *OllamaFormatter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaFormatter{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		model:      cfg.Model,
		prompt:     prompt,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.Named("ollama"),
	}
}

func (f *OllamaFormatter) Name() string { return "ollama" }

func (f *OllamaFormatter) Format(ctx context.Context, text string) (string, error) {
	user, err := f.prompt.User(text)
	if err != nil {
		return "", err
	}

	reqData, err := json.Marshal(ollamaChatRequest{
		Model: f.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: f.prompt.System},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint+"/api/chat", bytes.NewReader(reqData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama error: %s", result.Error)
	}
	if result.Message == nil {
		return "", nil
	}

	f.logger.Debug("Ollama chat finished",
		logger.String("model", result.Model),
		logger.Int("evalCount", result.EvalCount),
		logger.Duration("total", time.Duration(result.TotalDuration)),
	)
	return result.Message.Content, nil
}

func (f *OllamaFormatter) Close() error {
	f.httpClient.CloseIdleConnections()
	return nil
}
