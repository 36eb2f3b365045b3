package formatter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/feichai0017/image-to-html/pkg/logger"
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIFormatter uses the chat completions API.
type OpenAIFormatter struct {
	client openai.Client
	model  string
	prompt Prompt
	logger logger.Logger
}

func NewOpenAIFormatter(cfg OpenAIConfig, prompt Prompt, log logger.Logger) (*OpenAIFormatter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIFormatter{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		prompt: prompt,
		logger: log.Named("openai"),
	}, nil
}

func (f *OpenAIFormatter) Name() string { return "openai" }

func (f *OpenAIFormatter) Format(ctx context.Context, text string) (string, error) {
	user, err := f.prompt.User(text)
	if err != nil {
		return "", err
	}

	resp, err := f.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(f.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(f.prompt.System),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		f.logger.Warn("Chat completion returned no choices", logger.String("model", f.model))
		return "", nil
	}

	f.logger.Debug("Chat completion finished",
		logger.String("model", resp.Model),
		logger.Int64("totalTokens", resp.Usage.TotalTokens),
		logger.String("finishReason", resp.Choices[0].FinishReason),
	)
	return resp.Choices[0].Message.Content, nil
}
