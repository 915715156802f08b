package common

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hyperdot/hyperdot-node/log"
)

const shutdownTimeout = 10 * time.Second

// RunServer serves until ctx is cancelled, then shuts the server down
// gracefully. It returns nil after a clean shutdown.
func RunServer(ctx context.Context, server *http.Server, logger *log.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("server stopped", "addr", server.Addr, "err", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown failed", "addr", server.Addr, "err", err)
		return err
	}
	logger.Info("server stopped", "addr", server.Addr)
	return nil
}
