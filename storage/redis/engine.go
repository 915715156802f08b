// Package redis implements a data engine that publishes every block to a
// per-chain redis stream.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/hyperdot/hyperdot-node/common"
	"github.com/hyperdot/hyperdot-node/config"
	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/metrics"
	"github.com/hyperdot/hyperdot-node/storage"
)

const moduleName = "redis"

// EngineName is the engine kind served by this package.
const EngineName = config.EngineKindRedis

// Stream entry fields.
const (
	FieldNumber = "number"
	FieldBlock  = "block"
)

type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// Engine adds blocks to redis streams.
type Engine struct {
	client  streamClient
	streams *storage.Registry[string]
	maxLen  int64
	metrics metrics.DatabaseMetrics
	logger  *log.Logger
}

var _ storage.DataEngine = (*Engine)(nil)

// NewEngine connects to redis and registers every enabled support chain.
func NewEngine(ctx context.Context, cfg *config.RedisEngineConfig, logger *log.Logger) (*Engine, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return newEngine(client, cfg, logger), nil
}

func newEngine(client streamClient, cfg *config.RedisEngineConfig, logger *log.Logger) *Engine {
	e := &Engine{
		client:  client,
		streams: storage.NewRegistry[string](),
		maxLen:  cfg.MaxLen,
		metrics: metrics.NewDefaultDatabaseMetrics(moduleName),
		logger:  logger.WithModule(moduleName),
	}
	for _, sc := range cfg.SupportChains {
		if !sc.Enabled {
			e.logger.Info("chain not enabled for redis data engine, skipping", "chain", sc.Name)
			continue
		}
		stream := sc.Stream
		if stream == "" {
			stream = config.DefaultStreamName(sc.Name)
		}
		e.streams.Register(sc.Name, stream)
		e.logger.Info("redis data engine serving chain", "chain", sc.Name, "stream", stream)
	}
	return e
}

func (e *Engine) Name() string {
	return EngineName
}

// Streams exposes the chain to stream registry.
func (e *Engine) Streams() storage.ConnectionRegistry[string] {
	return e.streams
}

// Chains returns the chains with a stream.
func (e *Engine) Chains() []string {
	return e.streams.Chains()
}

// Write adds the payload's block, JSON encoded, to chain's stream.
func (e *Engine) Write(ctx context.Context, chain string, payload common.BlockPayload) error {
	stream, ok := e.streams.Get(chain)
	if !ok {
		return common.ChainNotRegistered(chain)
	}

	var block interface{}
	switch payload.Kind {
	case common.ChainKindPolkadot:
		if payload.Polkadot == nil {
			return fmt.Errorf("redis: empty %s payload", payload.Kind)
		}
		block = payload.Polkadot
	default:
		return fmt.Errorf("redis: %w: %s", common.ErrUnsupportedChainKind, payload.Kind)
	}
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("redis: encode block %d: %w", payload.Number(), err)
	}

	timer := e.metrics.DatabaseLatencies(chain, "xadd")
	defer timer.ObserveDuration()
	args := &redis.XAddArgs{
		Stream: stream,
		Values: []interface{}{
			FieldNumber, strconv.FormatUint(payload.Number(), 10),
			FieldBlock, string(data),
		},
	}
	if e.maxLen > 0 {
		args.MaxLen = e.maxLen
		args.Approx = true
	}
	id, err := e.client.XAdd(ctx, args).Result()
	e.metrics.DatabaseOperations(chain, "xadd", metrics.StatusOf(err)).Inc()
	if err != nil {
		return fmt.Errorf("redis: xadd %s: %w", stream, err)
	}
	e.logger.Debug("block added", "chain", chain, "stream", stream, "block", payload.Number(), "id", id)
	return nil
}

func (e *Engine) Close() {
	if err := e.client.Close(); err != nil {
		e.logger.Warn("close failed", "err", err)
	}
}
