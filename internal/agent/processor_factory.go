package agent

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/feichai0017/image-to-html/config"
	"github.com/feichai0017/image-to-html/internal/agent/acquire"
	"github.com/feichai0017/image-to-html/internal/agent/formatter"
	"github.com/feichai0017/image-to-html/internal/agent/ocr"
	"github.com/feichai0017/image-to-html/internal/agent/ocr/preprocess"
	"github.com/feichai0017/image-to-html/internal/agent/ocr/tesseract"
	"github.com/feichai0017/image-to-html/internal/utils/validator"
	"github.com/feichai0017/image-to-html/pkg/logger"
	"github.com/feichai0017/image-to-html/pkg/storage"
	"github.com/feichai0017/image-to-html/pkg/storage/memory"
	"github.com/feichai0017/image-to-html/pkg/storage/redis"
)

// ProcessorFactory builds the configured backends.
type ProcessorFactory struct {
	cfg    *config.Config
	logger logger.Logger
}

func NewProcessorFactory(cfg *config.Config, log logger.Logger) *ProcessorFactory {
	return &ProcessorFactory{cfg: cfg, logger: log}
}

func (f *ProcessorFactory) OCRClient(ctx context.Context) (ocr.Client, error) {
	c := f.cfg.OCR
	switch c.Provider {
	case "vision", "":
		return ocr.NewVisionClient(ocr.VisionConfig{
			Endpoint: c.Vision.Endpoint,
			APIKey:   c.Vision.APIKey,
			Timeout:  c.Timeout,
		}, f.logger), nil
	case "textract":
		client, err := ocr.NewTextractClient(ctx, ocr.TextractConfig{
			Region:      c.Textract.Region,
			Endpoint:    c.Textract.Endpoint,
			Credentials: textractCredentials(c.Textract),
		}, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create textract client: %w", err)
		}
		return client, nil
	case "tesseract":
		return tesseract.New(tesseract.Config{
			Languages: c.Tesseract.Languages,
			Preprocess: preprocess.Options{
				MaxWidth: c.Tesseract.MaxWidth,
				Contrast: c.Tesseract.Contrast,
				Sharpen:  c.Tesseract.Sharpen,
			},
		}, f.logger), nil
	default:
		return nil, fmt.Errorf("unknown ocr provider %q", c.Provider)
	}
}

// textractCredentials returns nil unless both keys are set, leaving the
// default AWS chain in charge.
func textractCredentials(c config.TextractConfig) aws.CredentialsProvider {
	if !c.HasStaticCredentials() {
		return nil
	}
	return credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")
}

func (f *ProcessorFactory) Prompt() (formatter.Prompt, error) {
	p := f.cfg.Prompt
	return formatter.NewPrompt(p.Preset, p.System, p.UserTemplate)
}

func (f *ProcessorFactory) Formatter() (formatter.Formatter, error) {
	prompt, err := f.Prompt()
	if err != nil {
		return nil, fmt.Errorf("invalid prompt: %w", err)
	}

	c := f.cfg.Formatter
	switch c.Provider {
	case "openai", "":
		return formatter.NewOpenAIFormatter(formatter.OpenAIConfig{
			APIKey:  c.OpenAI.APIKey,
			BaseURL: c.OpenAI.BaseURL,
			Model:   c.OpenAI.Model,
			Timeout: c.Timeout,
		}, prompt, f.logger)
	case "ollama":
		return formatter.NewOllamaFormatter(formatter.OllamaConfig{
			Endpoint: c.Ollama.Endpoint,
			Model:    c.Ollama.Model,
			Timeout:  c.Timeout,
		}, prompt, f.logger), nil
	default:
		return nil, fmt.Errorf("unknown formatter provider %q", c.Provider)
	}
}

func (f *ProcessorFactory) Acquirer() *acquire.Acquirer {
	return acquire.New(validator.NewImageValidator(f.logger.Named("validator"), &validator.ValidatorConfig{
		MaxFileSize:  f.cfg.Upload.MaxSize,
		AllowedTypes: f.cfg.Upload.AllowedTypes,
		MaxDimension: 10000,
	}))
}

func (f *ProcessorFactory) Storage(ctx context.Context) (storage.Storage, error) {
	c := f.cfg.Storage
	switch storage.StorageType(c.Type) {
	case storage.StorageTypeMemory, "":
		return memory.NewMemoryStorage(f.logger), nil
	case storage.StorageTypeRedis:
		return redis.NewRedisStorage(ctx, redis.Config{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			TTL:      c.SessionTTL,
		}, f.logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Type)
	}
}
