// Package streaming implements the streaming sub-command.
package streaming

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hyperdot/hyperdot-node/cache/kvstore"
	"github.com/hyperdot/hyperdot-node/cmd/common"
	nodeCommon "github.com/hyperdot/hyperdot-node/common"
	"github.com/hyperdot/hyperdot-node/config"
	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/metrics"
	"github.com/hyperdot/hyperdot-node/speaker"
	"github.com/hyperdot/hyperdot-node/storage"
	"github.com/hyperdot/hyperdot-node/streaming"
	"github.com/hyperdot/hyperdot-node/streaming/syncer"
)

const moduleName = "streaming_service"

var (
	// Path to the configuration file.
	configFile string

	streamingCmd = &cobra.Command{
		Use:   "streaming",
		Short: "Follow finalized blocks and write them to storage",
		Run:   runStreaming,
	}
)

func runStreaming(cmd *cobra.Command, args []string) {
	// Initialize config.
	cfg, err := config.InitConfig(configFile)
	if err != nil {
		log.NewDefaultLogger("init").Error("init failed",
			"error", err,
		)
		os.Exit(1)
	}

	// Initialize common environment.
	if err = common.Init(cfg); err != nil {
		log.NewDefaultLogger("init").Error("init failed",
			"error", err,
		)
		os.Exit(1)
	}
	logger := common.RootLogger()

	if cfg.Streaming == nil {
		logger.Error("streaming config not provided")
		os.Exit(1)
	}

	ctx, stop := common.SignalContext()
	defer stop()

	service, err := NewService(ctx, cfg)
	if err != nil {
		logger.Error("service failed to start", "error", err)
		os.Exit(1)
	}
	defer service.Shutdown()

	if err := service.Run(ctx); err != nil {
		logger.Error("streaming stopped", "error", err)
		service.Shutdown()
		os.Exit(1)
	}
}

// Service follows the catalog chains and writes their blocks to the
// configured target.
type Service struct {
	controller *streaming.Controller
	metrics    *config.MetricsConfig
	closers    []func()
	logger     *log.Logger
}

// NewService dials the chains and opens the write target.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	logger := common.RootLogger().WithModule(moduleName)
	s := &Service{metrics: cfg.Metrics, logger: logger}

	catalog, err := common.LoadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	opts := streaming.ClientOptions(cfg.Streaming.RPC)
	if cfg.Streaming.Cache != nil {
		path := filepath.Join(cfg.Streaming.Cache.CacheDir, "metadata")
		cache, err := kvstore.OpenKVStore(logger.WithModule("metadata_cache"), path, metrics.NewCacheMetrics("metadata"))
		if err != nil {
			return nil, fmt.Errorf("open metadata cache: %w", err)
		}
		s.closers = append(s.closers, func() { nodeCommon.CloseOrLog(cache, logger) })
		opts.Cache = cache
	}

	target := cfg.Streaming.Target
	if target == "" {
		target = config.TargetRemote
	}
	writer, err := s.openTarget(ctx, cfg.Streaming, target, catalog)
	if err != nil {
		s.Shutdown()
		return nil, err
	}

	chains, closeChains, err := streaming.DialChains(ctx, catalog, opts, logger)
	if err != nil {
		s.Shutdown()
		return nil, err
	}
	s.closers = append(s.closers, closeChains)

	s.controller = streaming.NewController(chains, writer, streaming.Config{
		Syncer: syncer.Config{
			ChannelCapacity: cfg.Streaming.ChannelCapacity,
			Overflow:        syncer.OverflowPolicy(cfg.Streaming.Overflow),
		},
		Target: target,
	}, logger)
	return s, nil
}

func (s *Service) openTarget(ctx context.Context, cfg *config.StreamingConfig, target string, catalog *config.Catalog) (streaming.BlockWriter, error) {
	if target == config.TargetLocal {
		node, err := common.StorageNode(catalog, cfg.StorageNode)
		if err != nil {
			return nil, err
		}
		engines, err := common.NewEngines(ctx, node, cfg.WriteMode, s.logger)
		if err != nil {
			return nil, err
		}
		controller := storage.NewController(engines.All, s.logger)
		s.closers = append(s.closers, controller.Close)
		s.logger.Info("writing blocks in-process", "storage_node", node.Name, "engines", len(engines.All))
		return controller, nil
	}

	controller := speaker.NewController(ctx, catalog, s.logger)
	s.closers = append(s.closers, controller.Close)
	if len(controller.Chains()) == 0 {
		return nil, fmt.Errorf("no chain has an available storage node")
	}
	return controller, nil
}

// Run streams until ctx is cancelled or a chain's syncer stops.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	common.StartInstrumentation(ctx, g, s.metrics)
	g.Go(func() error {
		return s.controller.Run(ctx)
	})
	return g.Wait()
}

// Shutdown releases the chain clients and the write target. It is safe to
// call more than once.
func (s *Service) Shutdown() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Register registers the streaming sub-command.
func Register(parentCmd *cobra.Command) {
	streamingCmd.Flags().StringVar(&configFile, "config", "./config/streaming.yml", "path to the config.yml file")
	parentCmd.AddCommand(streamingCmd)
}
