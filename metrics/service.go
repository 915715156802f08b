package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperdot/hyperdot-node/common"
	"github.com/hyperdot/hyperdot-node/log"
)

const moduleName = "metrics"

// PullService exposes /metrics for Prometheus to scrape.
type PullService struct {
	server *http.Server
	logger *log.Logger
}

// NewPullService creates a pull service listening on pullEndpoint.
func NewPullService(pullEndpoint string, logger *log.Logger) *PullService {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &PullService{
		server: &http.Server{
			Addr:           pullEndpoint,
			Handler:        mux,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		logger: logger.WithModule(moduleName),
	}
}

// Run serves metrics until ctx is cancelled.
func (s *PullService) Run(ctx context.Context) error {
	s.logger.Info("starting pull metrics service", "endpoint", s.server.Addr)
	return common.RunServer(ctx, s.server, s.logger)
}
