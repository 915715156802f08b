// Package api serves the query API of a storage node.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/metrics"
	"github.com/hyperdot/hyperdot-node/storage"
)

const (
	moduleName = "api"

	// RootPath prefixes every route.
	RootPath = "/apis/v1"

	maxRequestBody = 1 << 20
)

// Backend answers queries against the data engines of a storage node.
type Backend interface {
	Query(ctx context.Context, engine string, chain string, sql string) (*storage.Rows, error)
	Schema(ctx context.Context, engine string, chain string) ([]storage.Table, error)
	Engines() []storage.DataEngine
}

var _ Backend = (*storage.Controller)(nil)

type Options struct {
	// RequestTimeout bounds each request. Zero means no bound.
	RequestTimeout time.Duration
	// CORSAllowedOrigins defaults to any origin.
	CORSAllowedOrigins []string
}

// NewRouter returns the HTTP handler of the query API.
func NewRouter(backend Backend, opts Options, logger *log.Logger) http.Handler {
	logger = logger.WithModule(moduleName)
	h := &handler{
		backend: backend,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(NewCorsMiddleware(opts.CORSAllowedOrigins))
	r.Use(MetricsMiddleware(metrics.NewDefaultRequestMetrics(moduleName), logger))
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Route(RootPath, func(r chi.Router) {
		r.Post("/query/run/{engine}", h.runQuery)
		r.Get("/dataengine/{engine}/{chain}/scheme", h.getScheme)
		r.Get("/system/health", h.health)
		r.Get("/system/dataengines", h.listDataEngines)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, ErrMethodNotAllowed)
	})
	return r
}
