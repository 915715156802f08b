package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperdot/hyperdot-node/common"
	"github.com/hyperdot/hyperdot-node/config"
	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/storage"
)

// EngineName is the engine kind served by this package.
const EngineName = config.EngineKindPostgres

const defaultConnectTimeout = 10 * time.Second

// ConnectionState is the connection of one registered chain. It is not
// modified after registration.
type ConnectionState struct {
	Client       *Client
	Connection   config.PostgresConnectionConfig
	SupportChain config.PostgresChainConfig
}

// ConnString is the connection URL of the chain database.
func (s *ConnectionState) ConnString() string {
	return s.Connection.ConnString(s.SupportChain.DBName)
}

type Options struct {
	Mode WriteMode
	// ConnectTimeout bounds the initial connect of each chain database.
	ConnectTimeout time.Duration
}

type connectFunc func(ctx context.Context, connString string, logger *log.Logger) (*Client, error)

func connect(ctx context.Context, connString string, logger *log.Logger) (*Client, error) {
	client, err := NewClient(ctx, connString, logger)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Engine routes each chain to its own database.
type Engine struct {
	conns  *storage.Registry[*ConnectionState]
	writer *Writer
	logger *log.Logger
}

var _ storage.QueryEngine = (*Engine)(nil)

// NewEngine connects every enabled support chain of info. Disabled chains,
// unknown connection names and failed connects are logged and skipped; the
// engine is still returned and simply does not serve those chains.
func NewEngine(ctx context.Context, info *config.PostgresEngineConfig, opts Options, logger *log.Logger) *Engine {
	return newEngine(ctx, info, opts, logger, connect)
}

func newEngine(ctx context.Context, info *config.PostgresEngineConfig, opts Options, logger *log.Logger, connect connectFunc) *Engine {
	if opts.Mode == "" {
		opts.Mode = WriteModePhased
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	e := &Engine{
		conns:  storage.NewRegistry[*ConnectionState](),
		writer: NewWriter(opts.Mode, logger),
		logger: logger.WithModule(moduleName),
	}

	for _, sc := range info.SupportChains {
		chainLogger := e.logger.WithChain(sc.Name)
		if !sc.Enabled {
			chainLogger.Info("chain not enabled for postgres data engine, skipping")
			continue
		}
		conn, ok := info.Connection(sc.UseConnection)
		if !ok {
			chainLogger.Error("connection not found in postgres connections, skipping",
				"use_connection", sc.UseConnection,
			)
			continue
		}
		if _, exists := e.conns.Get(sc.Name); exists {
			chainLogger.Warn("chain listed twice in postgres support chains, skipping")
			continue
		}

		connectCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
		client, err := connect(connectCtx, conn.ConnString(sc.DBName), logger)
		cancel()
		if err != nil {
			chainLogger.Error("postgres connect failed, skipping",
				"use_connection", conn.Name,
				"dbname", sc.DBName,
				"err", err,
			)
			continue
		}

		e.conns.Register(sc.Name, &ConnectionState{
			Client:       client,
			Connection:   *conn,
			SupportChain: sc,
		})
		chainLogger.Info("postgres data engine connected", "dbname", sc.DBName, "mode", opts.Mode)
	}
	return e
}

func (e *Engine) Name() string {
	return EngineName
}

// Connections exposes the chain registry.
func (e *Engine) Connections() storage.ConnectionRegistry[*ConnectionState] {
	return e.conns
}

// Chains returns the registered chains.
func (e *Engine) Chains() []string {
	return e.conns.Chains()
}

func (e *Engine) state(chain string) (*ConnectionState, error) {
	state, ok := e.conns.Get(chain)
	if !ok {
		return nil, common.ChainNotRegistered(chain)
	}
	return state, nil
}

// Write upserts the payload's block into chain's database.
func (e *Engine) Write(ctx context.Context, chain string, payload common.BlockPayload) error {
	state, err := e.state(chain)
	if err != nil {
		return err
	}
	switch payload.Kind {
	case common.ChainKindPolkadot:
		if payload.Polkadot == nil {
			return fmt.Errorf("postgres: empty %s payload", payload.Kind)
		}
		return e.writer.Write(ctx, chain, state.Client, payload.Polkadot)
	default:
		return fmt.Errorf("postgres: %w: %s", common.ErrUnsupportedChainKind, payload.Kind)
	}
}

// Query runs sql verbatim on chain's database.
func (e *Engine) Query(ctx context.Context, chain string, sql string) (*storage.Rows, error) {
	state, err := e.state(chain)
	if err != nil {
		return nil, err
	}
	rows, err := state.Client.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("postgres: query chain %s: %w", chain, err)
	}
	return collectRows(rows)
}

// Schema lists the tables of chain's database.
func (e *Engine) Schema(ctx context.Context, chain string) ([]storage.Table, error) {
	state, err := e.state(chain)
	if err != nil {
		return nil, err
	}
	rows, err := state.Client.Query(ctx, listColumns)
	if err != nil {
		return nil, fmt.Errorf("postgres: schema of chain %s: %w", chain, err)
	}
	defer rows.Close()

	var tables []storage.Table
	for rows.Next() {
		var schema, table string
		var col storage.Column
		if err := rows.Scan(&schema, &table, &col.Name, &col.Type, &col.Nullable); err != nil {
			return nil, err
		}
		if n := len(tables); n == 0 || tables[n-1].Schema != schema || tables[n-1].Name != table {
			tables = append(tables, storage.Table{Schema: schema, Name: table})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, col)
	}
	return tables, rows.Err()
}

// Wipe drops every table of every registered chain database.
func (e *Engine) Wipe(ctx context.Context) error {
	for _, chain := range e.conns.Chains() {
		state, _ := e.conns.Get(chain)
		e.logger.Warn("wiping chain database", "chain", chain, "dbname", state.SupportChain.DBName)
		if err := state.Client.Wipe(ctx); err != nil {
			return fmt.Errorf("wipe %s: %w", chain, err)
		}
	}
	return nil
}

// Close closes every chain connection.
func (e *Engine) Close() {
	e.conns.Each(func(_ string, state *ConnectionState) {
		state.Client.Close()
	})
}
