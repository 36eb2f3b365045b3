package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	appOnce   sync.Once
	appConfig *Config
	appErr    error
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Upload    UploadConfig    `yaml:"upload"`
	Storage   StorageConfig   `yaml:"storage"`
	Queue     QueueConfig     `yaml:"queue"`
	OCR       OCRConfig       `yaml:"ocr"`
	Formatter FormatterConfig `yaml:"formatter"`
	Prompt    PromptConfig    `yaml:"prompt"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Mode            string        `yaml:"mode"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowOrigins    []string      `yaml:"allow_origins"`
	CookieSecure    bool          `yaml:"cookie_secure"`
	RefreshSeconds  int           `yaml:"refresh_seconds"`
}

type LogConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"output_paths"`
}

type UploadConfig struct {
	MaxSize      int64    `yaml:"max_size"`
	AllowedTypes []string `yaml:"allowed_types"`
}

type StorageConfig struct {
	Type            string        `yaml:"type"` // memory | redis
	RedisAddr       string        `yaml:"redis_addr"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisDB         int           `yaml:"redis_db"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type QueueConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Embedded    bool          `yaml:"embedded"`
	RedisAddr   string        `yaml:"redis_addr"`
	RedisDB     int           `yaml:"redis_db"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

type OCRConfig struct {
	Provider  string          `yaml:"provider"` // vision | textract | tesseract
	Timeout   time.Duration   `yaml:"timeout"`
	Vision    VisionConfig    `yaml:"vision"`
	Textract  TextractConfig  `yaml:"textract"`
	Tesseract TesseractConfig `yaml:"tesseract"`
}

type VisionConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"-"`
}

type TesseractConfig struct {
	Languages []string `yaml:"languages"`
	MaxWidth  int      `yaml:"max_width"`
	Contrast  float64  `yaml:"contrast"`
	Sharpen   float64  `yaml:"sharpen"`
}

type FormatterConfig struct {
	Provider string        `yaml:"provider"` // openai | ollama
	Timeout  time.Duration `yaml:"timeout"`
	OpenAI   OpenAIConfig  `yaml:"openai"`
	Ollama   OllamaConfig  `yaml:"ollama"`
}

type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"-"`
}

type OllamaConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// PromptConfig selects the instruction sent to the formatter. System and
// UserTemplate override the preset when set.
type PromptConfig struct {
	Preset       string `yaml:"preset"`
	System       string `yaml:"system"`
	UserTemplate string `yaml:"user_template"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Mode:            "release",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    3 * time.Minute,
			ShutdownTimeout: 5 * time.Second,
			AllowOrigins:    []string{"*"},
			RefreshSeconds:  1,
		},
		Log: LogConfig{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stdout"},
		},
		Upload: UploadConfig{
			MaxSize:      10 * 1024 * 1024,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/tiff", "image/bmp"},
		},
		Storage: StorageConfig{
			Type:            "memory",
			RedisAddr:       "localhost:6379",
			SessionTTL:      24 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Queue: QueueConfig{
			RedisAddr:   "localhost:6379",
			Concurrency: 5,
			Timeout:     5 * time.Minute,
		},
		OCR: OCRConfig{
			Provider: "vision",
			Timeout:  60 * time.Second,
			Vision: VisionConfig{
				Endpoint: "https://vision.googleapis.com/v1/images:annotate",
			},
			Tesseract: TesseractConfig{
				Languages: []string{"eng"},
				MaxWidth:  2400,
				Contrast:  20,
				Sharpen:   0.5,
			},
		},
		Formatter: FormatterConfig{
			Provider: "openai",
			Timeout:  2 * time.Minute,
			OpenAI: OpenAIConfig{
				Model: "gpt-4o",
			},
			Ollama: OllamaConfig{
				Endpoint: "http://localhost:11434",
				Model:    "llama3.2",
			},
		},
		Prompt: PromptConfig{
			Preset: "table",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// and the process environment, in that order. A .env file in the working
// directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Printf("Warning: config file not found at %s, using defaults and environment", path)
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

// GetConfig loads the configuration once, from CONFIG_PATH or config.yaml.
func GetConfig() (*Config, error) {
	appOnce.Do(func() {
		path := os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "config.yaml"
		}
		appConfig, appErr = Load(path)
	})
	return appConfig, appErr
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	boolean := func(dst *bool, key string) {
		if v, ok := lookup(key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str(&c.Server.Addr, "SERVER_ADDR")
	str(&c.Server.Mode, "GIN_MODE")
	str(&c.Log.Level, "LOG_LEVEL")
	str(&c.Log.Encoding, "LOG_ENCODING")

	str(&c.Storage.Type, "STORAGE_TYPE")
	str(&c.Storage.RedisAddr, "REDIS_ADDR")
	str(&c.Storage.RedisPassword, "REDIS_PASSWORD")
	boolean(&c.Queue.Enabled, "QUEUE_ENABLED")
	boolean(&c.Queue.Embedded, "QUEUE_EMBEDDED")
	str(&c.Queue.RedisAddr, "QUEUE_REDIS_ADDR", "REDIS_ADDR")

	str(&c.OCR.Provider, "OCR_PROVIDER")
	str(&c.OCR.Vision.Endpoint, "VISION_ENDPOINT")
	str(&c.OCR.Vision.APIKey, "GOOGLE_API_KEY", "REACT_APP_GOOGLE_API_KEY")
	str(&c.OCR.Textract.Region, "AWS_REGION")
	str(&c.OCR.Textract.Endpoint, "AWS_ENDPOINT")
	str(&c.OCR.Textract.AccessKey, "AWS_ACCESS_KEY")
	str(&c.OCR.Textract.SecretKey, "AWS_SECRET_KEY")
	if v, ok := lookup("TESSERACT_LANGUAGES"); ok && v != "" {
		c.OCR.Tesseract.Languages = strings.Split(v, "+")
	}

	str(&c.Formatter.Provider, "FORMATTER_PROVIDER")
	str(&c.Formatter.OpenAI.APIKey, "OPENAI_API_KEY", "REACT_APP_OPENAI_API_KEY")
	str(&c.Formatter.OpenAI.BaseURL, "OPENAI_BASE_URL")
	str(&c.Formatter.OpenAI.Model, "OPENAI_MODEL")
	str(&c.Formatter.Ollama.Endpoint, "OLLAMA_ENDPOINT")
	str(&c.Formatter.Ollama.Model, "OLLAMA_MODEL")
	str(&c.Prompt.Preset, "PROMPT_PRESET")
}

// Validate reports settings the selected providers cannot run without.
func (c *Config) Validate() error {
	var errs []error

	switch c.OCR.Provider {
	case "vision":
		if c.OCR.Vision.APIKey == "" {
			errs = append(errs, errors.New("ocr: GOOGLE_API_KEY is required for the vision provider"))
		}
	case "textract":
		if c.OCR.Textract.Region == "" {
			errs = append(errs, errors.New("ocr: AWS_REGION is required for the textract provider"))
		}
	case "tesseract":
	default:
		errs = append(errs, fmt.Errorf("ocr: unknown provider %q", c.OCR.Provider))
	}

	switch c.Formatter.Provider {
	case "openai":
		if c.Formatter.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("formatter: OPENAI_API_KEY is required for the openai provider"))
		}
		if c.Formatter.OpenAI.Model == "" {
			errs = append(errs, errors.New("formatter: openai model is required"))
		}
	case "ollama":
		if c.Formatter.Ollama.Endpoint == "" {
			errs = append(errs, errors.New("formatter: ollama endpoint is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("formatter: unknown provider %q", c.Formatter.Provider))
	}

	switch c.Storage.Type {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("storage: unknown type %q", c.Storage.Type))
	}
	if c.Queue.Enabled && c.Storage.Type != "redis" {
		errs = append(errs, errors.New("queue: the asynq queue needs the redis session store so workers can see sessions"))
	}
	if c.Upload.MaxSize <= 0 {
		errs = append(errs, errors.New("upload: max_size must be positive"))
	}

	return errors.Join(errs...)
}
