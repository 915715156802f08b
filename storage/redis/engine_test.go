package redis

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/hyperdot/hyperdot-node/common"
	"github.com/hyperdot/hyperdot-node/config"
	"github.com/hyperdot/hyperdot-node/log"
)

type fakeClient struct {
	added  []*redis.XAddArgs
	err    error
	closed bool
}

func (f *fakeClient) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	f.added = append(f.added, a)
	return redis.NewStringResult("1-0", nil)
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func testConfig() *config.RedisEngineConfig {
	return &config.RedisEngineConfig{
		MaxLen: 500,
		SupportChains: []config.RedisChainConfig{
			{Name: "LocalSubstrate", Enabled: true},
			{Name: "Westend", Stream: "westend-blocks", Enabled: true},
			{Name: "Kusama", Enabled: false},
		},
	}
}

func block(n uint64) *common.Block {
	return &common.Block{Header: common.Header{BlockNumber: n, SpecVersion: 1}}
}

func TestEngineWrite(t *testing.T) {
	client := &fakeClient{}
	e := newEngine(client, testConfig(), log.NewDefaultLogger("test"))

	require.NoError(t, e.Write(context.Background(), "LocalSubstrate", common.PolkadotPayload(block(7))))
	require.Len(t, client.added, 1)
	args := client.added[0]
	require.Equal(t, "hyperdot:local_substrate:blocks", args.Stream)
	require.Equal(t, int64(500), args.MaxLen)
	require.True(t, args.Approx)

	values := args.Values.([]interface{})
	require.Equal(t, FieldNumber, values[0])
	require.Equal(t, "7", values[1])
	var decoded common.Block
	require.NoError(t, json.Unmarshal([]byte(values[3].(string)), &decoded))
	require.Equal(t, uint64(7), decoded.Header.BlockNumber)

	require.NoError(t, e.Write(context.Background(), "Westend", common.PolkadotPayload(block(8))))
	require.Equal(t, "westend-blocks", client.added[1].Stream)

	e.Close()
	require.True(t, client.closed)
}

func TestEngineWriteErrors(t *testing.T) {
	client := &fakeClient{}
	e := newEngine(client, testConfig(), log.NewDefaultLogger("test"))
	ctx := context.Background()

	require.ErrorIs(t, e.Write(ctx, "Kusama", common.PolkadotPayload(block(1))), common.ErrChainNotRegistered)
	require.ErrorIs(t, e.Write(ctx, "LocalSubstrate", common.BlockPayload{Kind: common.ChainKindEthereum}), common.ErrUnsupportedChainKind)

	_, ok := e.Streams().Get("Kusama")
	require.False(t, ok)

	client.err = errors.New("OOM command not allowed")
	require.ErrorContains(t, e.Write(ctx, "LocalSubstrate", common.PolkadotPayload(block(1))), "OOM")
}

func TestEngineRedis(t *testing.T) {
	addr := os.Getenv("CI_TEST_REDIS_URL")
	if testing.Short() || addr == "" {
		t.Skip("CI_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(addr)
	require.NoError(t, err)

	ctx := context.Background()
	cfg := &config.RedisEngineConfig{
		Addr:          opts.Addr,
		Username:      opts.Username,
		Password:      opts.Password,
		DB:            opts.DB,
		SupportChains: []config.RedisChainConfig{{Name: "LocalSubstrate", Stream: "hyperdot:test:blocks", Enabled: true}},
	}
	e, err := NewEngine(ctx, cfg, log.NewDefaultLogger("test"))
	require.NoError(t, err)
	defer e.Close()

	raw := redis.NewClient(opts)
	defer raw.Close()
	require.NoError(t, raw.Del(ctx, "hyperdot:test:blocks").Err())

	require.NoError(t, e.Write(ctx, "LocalSubstrate", common.PolkadotPayload(block(100))))
	entries, err := raw.XRange(ctx, "hyperdot:test:blocks", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "100", entries[0].Values[FieldNumber])
}
