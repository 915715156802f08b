package config

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"

	"github.com/hyperdot/hyperdot-node/common"
)

// Data engine kinds.
const (
	EngineKindPostgres = "postgres"
	EngineKindRedis    = "redis"
)

// Catalog describes every known chain and every storage node.
type Catalog struct {
	Storage StorageCatalog `koanf:"storage"`
	Chains  []ChainConfig  `koanf:"chain"`
}

type StorageCatalog struct {
	Nodes []StorageNodeConfig `koanf:"nodes"`
}

// ChainConfig is one chain the pipeline may follow.
type ChainConfig struct {
	ID   int    `koanf:"id"`
	Name string `koanf:"name"`
	// URL is the chain node RPC endpoint (ws, wss, http or https).
	URL             string                 `koanf:"url"`
	Kind            common.ChainKind       `koanf:"kind"`
	PolkadotRuntime *PolkadotRuntimeConfig `koanf:"polkadot_runtime"`
	// StorageNodes names the storage nodes that receive this chain's blocks.
	StorageNodes []string `koanf:"storage_nodes"`
	Enabled      bool     `koanf:"enabled"`
}

type PolkadotRuntimeConfig struct {
	Config string `koanf:"config"`
}

// StorageNodeConfig is one storage node and the data engines it runs.
type StorageNodeConfig struct {
	ID           int              `koanf:"id"`
	Name         string           `koanf:"name"`
	RPCEndpoint  string           `koanf:"rpc_endpoint"`
	HTTPEndpoint string           `koanf:"http_endpoint"`
	DataEngines  []DataEngineInfo `koanf:"data_engines"`
}

// DataEngineInfo configures one data engine. Exactly one of the engine
// sections is set; Kind is derived from it when omitted.
type DataEngineInfo struct {
	Kind     string                `koanf:"kind"`
	Postgres *PostgresEngineConfig `koanf:"postgres"`
	Redis    *RedisEngineConfig    `koanf:"redis"`
}

// PostgresEngineConfig maps chains onto named postgres connections. A
// chain's database is reached through connection + dbname.
type PostgresEngineConfig struct {
	Connections   []PostgresConnectionConfig `koanf:"connections"`
	SupportChains []PostgresChainConfig      `koanf:"support_chains"`
}

type PostgresConnectionConfig struct {
	Name     string `koanf:"name"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Host     string `koanf:"host"`
	Port     uint16 `koanf:"port"`
	// SSLMode is passed as sslmode. Defaults to "disable".
	SSLMode string `koanf:"sslmode"`
}

type PostgresChainConfig struct {
	ID            int    `koanf:"id"`
	Name          string `koanf:"name"`
	UseConnection string `koanf:"use_connection"`
	DBName        string `koanf:"dbname"`
	Enabled       bool   `koanf:"enabled"`
}

// RedisEngineConfig publishes blocks to one redis stream per chain.
type RedisEngineConfig struct {
	Addr     string `koanf:"addr"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	// MaxLen approximately trims each stream. Zero keeps everything.
	MaxLen        int64              `koanf:"max_len"`
	SupportChains []RedisChainConfig `koanf:"support_chains"`
}

type RedisChainConfig struct {
	Name string `koanf:"name"`
	// Stream defaults to hyperdot:{snake_case(name)}:blocks.
	Stream  string `koanf:"stream"`
	Enabled bool   `koanf:"enabled"`
}

// LoadCatalog reads the catalog at path. Only JSON catalogs are supported.
func LoadCatalog(path string) (*Catalog, error) {
	ext := filepath.Ext(path)
	switch ext {
	case "":
		return nil, fmt.Errorf("catalog %s: path extension invalid", path)
	case ".json":
		return loadCatalog(file.Provider(path))
	default:
		return nil, fmt.Errorf("catalog %s: %s: path extension unsupported", path, ext[1:])
	}
}

func loadCatalog(p koanf.Provider) (*Catalog, error) {
	var catalog Catalog
	k := koanf.New(".")
	if err := k.Load(p, json.Parser()); err != nil {
		return nil, err
	}
	if err := k.Unmarshal("", &catalog); err != nil {
		return nil, err
	}
	if err := catalog.normalize(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// normalize canonicalizes chain and engine kinds, fills default names and
// rejects malformed entries.
func (c *Catalog) normalize() error {
	for i := range c.Chains {
		ch := &c.Chains[i]
		if ch.Name == "" {
			return fmt.Errorf("chain[%d]: no name", i)
		}
		kind, err := common.ParseChainKind(string(ch.Kind))
		if err != nil {
			return fmt.Errorf("chain %s: %w", ch.Name, err)
		}
		ch.Kind = kind
		if ch.Enabled && ch.URL == "" {
			return fmt.Errorf("chain %s: no url", ch.Name)
		}
	}
	for i := range c.Storage.Nodes {
		node := &c.Storage.Nodes[i]
		if node.Name == "" {
			return fmt.Errorf("storage node[%d]: no name", i)
		}
		for j := range node.DataEngines {
			if err := node.DataEngines[j].normalize(); err != nil {
				return fmt.Errorf("storage node %s: data engine %d: %w", node.Name, j, err)
			}
		}
	}
	return nil
}

func (e *DataEngineInfo) normalize() error {
	switch {
	case e.Postgres != nil && e.Redis != nil:
		return fmt.Errorf("both postgres and redis configured")
	case e.Postgres != nil:
		if e.Kind != "" && e.Kind != EngineKindPostgres {
			return fmt.Errorf("kind %s does not match postgres section", e.Kind)
		}
		e.Kind = EngineKindPostgres
		for i := range e.Postgres.SupportChains {
			sc := &e.Postgres.SupportChains[i]
			if sc.DBName == "" {
				sc.DBName = strcase.ToSnake(sc.Name)
			}
		}
	case e.Redis != nil:
		if e.Kind != "" && e.Kind != EngineKindRedis {
			return fmt.Errorf("kind %s does not match redis section", e.Kind)
		}
		e.Kind = EngineKindRedis
		for i := range e.Redis.SupportChains {
			sc := &e.Redis.SupportChains[i]
			if sc.Stream == "" {
				sc.Stream = DefaultStreamName(sc.Name)
			}
		}
	default:
		return fmt.Errorf("no engine section configured")
	}
	return nil
}

// DefaultStreamName is the redis stream a chain's blocks are added to.
func DefaultStreamName(chain string) string {
	return fmt.Sprintf("hyperdot:%s:blocks", strcase.ToSnake(chain))
}

// Chain returns the chain named name.
func (c *Catalog) Chain(name string) (*ChainConfig, bool) {
	for i := range c.Chains {
		if c.Chains[i].Name == name {
			return &c.Chains[i], true
		}
	}
	return nil, false
}

// EnabledChains returns the chains with enabled set, in catalog order.
func (c *Catalog) EnabledChains() []ChainConfig {
	var chains []ChainConfig
	for _, ch := range c.Chains {
		if ch.Enabled {
			chains = append(chains, ch)
		}
	}
	return chains
}

// StorageNode returns the storage node named name.
func (c *Catalog) StorageNode(name string) (*StorageNodeConfig, bool) {
	for i := range c.Storage.Nodes {
		if c.Storage.Nodes[i].Name == name {
			return &c.Storage.Nodes[i], true
		}
	}
	return nil, false
}

// Connection returns the named connection.
func (cfg *PostgresEngineConfig) Connection(name string) (*PostgresConnectionConfig, bool) {
	for i := range cfg.Connections {
		if cfg.Connections[i].Name == name {
			return &cfg.Connections[i], true
		}
	}
	return nil, false
}

// ConnString is the connection URL for dbname on this server.
func (cfg *PostgresConnectionConfig) ConnString(dbname string) string {
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(int(cfg.Port))),
		Path:     "/" + dbname,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}
