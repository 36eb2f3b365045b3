package agent

import (
	"fmt"
	"io"

	"github.com/feichai0017/image-to-html/pkg/logger"
)

// CloseClients closes every client that implements io.Closer. Failures are
// logged so the remaining clients still get closed.
func CloseClients(log logger.Logger, clients ...any) {
	for _, c := range clients {
		closer, ok := c.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			log.Warn("Failed to close client",
				logger.String("client", fmt.Sprintf("%T", c)),
				logger.Error(err),
			)
		}
	}
}
