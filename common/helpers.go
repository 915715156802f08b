package common

import (
	"io"

	"github.com/hyperdot/hyperdot-node/log"
)

// CloseOrLog closes c and logs the failure, if any.
func CloseOrLog(c io.Closer, logger *log.Logger) {
	if err := c.Close(); err != nil {
		logger.Warn("close failed", "err", err)
	}
}
