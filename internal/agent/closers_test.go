package agent

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/image-to-html/config"
	"github.com/feichai0017/image-to-html/internal/agent/formatter"
	"github.com/feichai0017/image-to-html/internal/agent/ocr"
	"github.com/feichai0017/image-to-html/pkg/logger"
)

type countingCloser struct {
	calls int
	err   error
}

func (c *countingCloser) Close() error {
	c.calls++
	return c.err
}

func TestCloseClientsClosesEveryCloser(t *testing.T) {
	log := logger.NewTestLogger()
	failing := &countingCloser{err: errors.New("busy")}
	ok := &countingCloser{}

	CloseClients(log, failing, "not a closer", ok)

	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
	assert.Len(t, log.Messages("WARN"), 1)
}

func TestConfiguredClientsAreClosable(t *testing.T) {
	f := newFactory(func(cfg *config.Config) { cfg.Formatter.Provider = "ollama" })

	o, err := f.OCRClient(context.Background())
	require.NoError(t, err)
	fm, err := f.Formatter()
	require.NoError(t, err)

	assert.Implements(t, (*io.Closer)(nil), o)
	assert.Implements(t, (*io.Closer)(nil), fm)

	log := logger.NewTestLogger()
	CloseClients(log, o, fm)
	assert.Empty(t, log.Messages("WARN"))
}

var (
	_ io.Closer = (*ocr.VisionClient)(nil)
	_ io.Closer = (*formatter.OllamaFormatter)(nil)
)
