// Package common implements common hyperdot-node command options.
package common

import (
	"context"
	"fmt"
	"io"
	stdLog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/akrylysov/pogreb"
	"golang.org/x/sync/errgroup"

	"github.com/hyperdot/hyperdot-node/config"
	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/metrics"
)

var rootLogger = log.NewDefaultLogger("hyperdot-node")

// Init initializes the common environment.
func Init(cfg *config.Config) error {
	var w io.Writer = os.Stdout
	format := log.FmtJSON
	level := log.LevelDebug

	if cfg.Log != nil {
		var err error
		if w, err = getLoggingStream(cfg.Log); err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		if err := format.Set(cfg.Log.Format); err != nil {
			return err
		}
		if err := level.Set(cfg.Log.Level); err != nil {
			return err
		}
	}
	logger, err := log.NewLogger("hyperdot-node", w, format, level)
	if err != nil {
		return err
	}
	rootLogger = logger

	// Initialize pogreb logging.
	pogrebLogger := RootLogger().WithModule("pogreb").WithCallerUnwind(7)
	pogreb.SetLogger(stdLog.New(log.WriterIntoLogger(pogrebLogger), "", 0))
	return nil
}

// RootLogger returns the logger defined by logging flags.
func RootLogger() *log.Logger {
	return rootLogger
}

func getLoggingStream(cfg *config.LogConfig) (io.Writer, error) {
	if cfg == nil || cfg.File == "" {
		return os.Stdout, nil
	}
	w, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// StartInstrumentation runs the Prometheus pull service and the pprof
// server in g, if configured. Both stop with ctx.
func StartInstrumentation(ctx context.Context, g *errgroup.Group, cfg *config.MetricsConfig) {
	if cfg == nil {
		return
	}
	promServer := metrics.NewPullService(cfg.PullEndpoint, rootLogger)
	g.Go(func() error {
		return promServer.Run(ctx)
	})
	if cfg.PprofEndpoint != "" {
		g.Go(func() error {
			return runPprof(ctx, cfg.PprofEndpoint)
		})
	}
}

// LoadCatalog reads the catalog named by the process configuration.
func LoadCatalog(cfg *config.Config) (*config.Catalog, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog config not provided")
	}
	catalog, err := config.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", cfg.Catalog.Path, err)
	}
	return catalog, nil
}
