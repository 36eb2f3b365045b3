package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "vision", cfg.OCR.Provider)
	assert.Equal(t, "openai", cfg.Formatter.Provider)
	assert.Equal(t, "gpt-4o", cfg.Formatter.OpenAI.Model)
	assert.Equal(t, "https://vision.googleapis.com/v1/images:annotate", cfg.OCR.Vision.Endpoint)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "table", cfg.Prompt.Preset)
}

func TestApplyEnvPrefersFirstKey(t *testing.T) {
	cfg := Default()
	cfg.applyEnv(envMap(map[string]string{
		"REACT_APP_GOOGLE_API_KEY": "legacy-google",
		"OPENAI_API_KEY":           "sk-new",
		"REACT_APP_OPENAI_API_KEY": "sk-legacy",
		"QUEUE_ENABLED":            "true",
		"TESSERACT_LANGUAGES":      "eng+deu",
		"OPENAI_MODEL":             "",
	}))

	assert.Equal(t, "legacy-google", cfg.OCR.Vision.APIKey)
	assert.Equal(t, "sk-new", cfg.Formatter.OpenAI.APIKey)
	assert.True(t, cfg.Queue.Enabled)
	assert.Equal(t, []string{"eng", "deu"}, cfg.OCR.Tesseract.Languages)
	assert.Equal(t, "gpt-4o", cfg.Formatter.OpenAI.Model, "empty env values do not override")
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  read_timeout: 5s
ocr:
  provider: tesseract
  tesseract:
    languages: [eng, fra]
prompt:
  preset: sections
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "tesseract", cfg.OCR.Provider)
	assert.Equal(t, []string{"eng", "fra"}, cfg.OCR.Tesseract.Languages)
	assert.Equal(t, "sections", cfg.Prompt.Preset)
	assert.Equal(t, "gpt-4o", cfg.Formatter.OpenAI.Model)
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY")
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	cfg.OCR.Vision.APIKey = "g"
	cfg.Formatter.OpenAI.APIKey = "o"
	assert.NoError(t, cfg.Validate())

	cfg.Queue.Enabled = true
	assert.Error(t, cfg.Validate())
	cfg.Storage.Type = "redis"
	assert.NoError(t, cfg.Validate())

	cfg.OCR.Provider = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}
