// Package storage implements the storage sub-command: a storage node that
// receives blocks over JSON-RPC and serves the query API.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hyperdot/hyperdot-node/api"
	"github.com/hyperdot/hyperdot-node/cmd/common"
	nodeCommon "github.com/hyperdot/hyperdot-node/common"
	"github.com/hyperdot/hyperdot-node/config"
	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/speaker"
	"github.com/hyperdot/hyperdot-node/storage"
	"github.com/hyperdot/hyperdot-node/storage/migrate"
	"github.com/hyperdot/hyperdot-node/storage/postgres"
)

const moduleName = "storage_service"

var (
	// Path to the configuration file.
	configFile string

	storageCmd = &cobra.Command{
		Use:   "storage",
		Short: "Run a storage node",
		Run:   runStorage,
	}
)

func runStorage(cmd *cobra.Command, args []string) {
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

	if cfg.Storage == nil {
		logger.Error("storage_node config not provided")
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
		logger.Error("storage node stopped", "error", err)
		service.Shutdown()
		os.Exit(1)
	}
}

// Service is a storage node: the data engines, the JSON-RPC endpoint that
// feeds them and the query API on top of them.
type Service struct {
	controller   *storage.Controller
	rpc          *rpc.Server
	rpcEndpoint  string
	httpEndpoint string
	apiOpts      api.Options
	metrics      *config.MetricsConfig
	logger       *log.Logger
}

// NewService opens the node's engines and prepares their schema.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	logger := common.RootLogger().WithModule(moduleName)

	catalog, err := common.LoadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	node, err := common.StorageNode(catalog, cfg.Storage.Name)
	if err != nil {
		return nil, err
	}

	engines, err := common.NewEngines(ctx, node, cfg.Storage.WriteMode, logger)
	if err != nil {
		return nil, err
	}
	if err := prepare(ctx, cfg.Storage, engines.Postgres, logger); err != nil {
		engines.Close()
		return nil, err
	}

	controller := storage.NewController(engines.All, logger)
	rpcServer, err := speaker.NewServer(controller, logger)
	if err != nil {
		controller.Close()
		return nil, err
	}

	s := &Service{
		controller:   controller,
		rpc:          rpcServer,
		rpcEndpoint:  node.RPCEndpoint,
		httpEndpoint: node.HTTPEndpoint,
		metrics:      cfg.Metrics,
		logger:       logger,
	}
	if cfg.Server != nil {
		if cfg.Server.Endpoint != "" {
			s.httpEndpoint = cfg.Server.Endpoint
		}
		if cfg.Server.RequestTimeout != nil {
			s.apiOpts.RequestTimeout = *cfg.Server.RequestTimeout
		}
		s.apiOpts.CORSAllowedOrigins = cfg.Server.CORSAllowedOrigins
	}
	return s, nil
}

// prepare wipes and migrates every chain database served by the postgres
// engines, as configured.
func prepare(ctx context.Context, cfg *config.StorageConfig, engines []*postgres.Engine, logger *log.Logger) error {
	for _, e := range engines {
		if cfg.WipeStorage {
			logger.Warn("wiping storage")
			if err := e.Wipe(ctx); err != nil {
				return fmt.Errorf("wipe storage: %w", err)
			}
		}
		if cfg.DisableMigrations {
			continue
		}
		for _, chain := range e.Chains() {
			state, _ := e.Connections().Get(chain)
			if err := migrate.Up(cfg.Migrations, state.ConnString(), logger.WithChain(chain)); err != nil {
				return fmt.Errorf("migrate chain %s: %w", chain, err)
			}
		}
	}
	return nil
}

// Run serves the JSON-RPC endpoint and the query API until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	common.StartInstrumentation(ctx, g, s.metrics)

	if s.rpcEndpoint != "" {
		rpcServer := &http.Server{
			Addr:              s.rpcEndpoint,
			Handler:           s.rpc,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			s.logger.Info("starting storage json-rpc server", "endpoint", s.rpcEndpoint)
			return nodeCommon.RunServer(ctx, rpcServer, s.logger)
		})
	} else {
		s.logger.Warn("storage node has no rpc_endpoint, blocks can only be queried")
	}

	if s.httpEndpoint != "" {
		apiServer := &http.Server{
			Addr:              s.httpEndpoint,
			Handler:           api.NewRouter(s.controller, s.apiOpts, s.logger),
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}
		g.Go(func() error {
			s.logger.Info("starting api server", "endpoint", s.httpEndpoint)
			return nodeCommon.RunServer(ctx, apiServer, s.logger)
		})
	}
	return g.Wait()
}

// Shutdown closes the engines. It is safe to call more than once.
func (s *Service) Shutdown() {
	if s.controller == nil {
		return
	}
	s.rpc.Stop()
	s.controller.Close()
	s.controller = nil
}

// Register registers the storage sub-command.
func Register(parentCmd *cobra.Command) {
	storageCmd.Flags().StringVar(&configFile, "config", "./config/storage.yml", "path to the config.yml file")
	parentCmd.AddCommand(storageCmd)
}
