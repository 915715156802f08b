package e2e

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperdot/hyperdot-node/chain/scale/scaletest"
	"github.com/hyperdot/hyperdot-node/chain/substrate/substratetest"
	"github.com/hyperdot/hyperdot-node/common"
	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/storage"
	"github.com/hyperdot/hyperdot-node/storage/postgres"
)

// statementEngine runs the postgres writer against an in-memory recorder
// instead of a database.
type statementEngine struct {
	writer *postgres.Writer

	mu       sync.Mutex
	payloads []common.BlockPayload
	batches  [][]*storage.BatchItem
}

func (e *statementEngine) Name() string {
	return postgres.EngineName
}

func (e *statementEngine) Write(ctx context.Context, chain string, payload common.BlockPayload) error {
	if chain != chainName {
		return common.ChainNotRegistered(chain)
	}
	e.mu.Lock()
	e.payloads = append(e.payloads, payload)
	e.mu.Unlock()
	return e.writer.Write(ctx, chain, e, payload.Polkadot)
}

func (e *statementEngine) SendBatch(_ context.Context, batch *storage.QueryBatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, batch.Queries())
	return nil
}

func (e *statementEngine) Close() {}

// rows returns the argument lists queued for table, in order.
func (e *statementEngine) rows(table string) [][]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out [][]interface{}
	for _, batch := range e.batches {
		for _, q := range batch {
			if strings.Contains(q.Cmd, "INSERT INTO "+table+" ") {
				out = append(out, q.Args)
			}
		}
	}
	return out
}

func (e *statementEngine) written(number uint64) bool {
	for _, args := range e.rows("blocks") {
		if args[0] == int64(number) {
			return true
		}
	}
	return false
}

func (e *statementEngine) lastPayload() common.BlockPayload {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.payloads[len(e.payloads)-1]
}

// statements renders every recorded statement with its arguments.
func (e *statementEngine) statements() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, batch := range e.batches {
		for _, q := range batch {
			args := make([]interface{}, len(q.Args))
			for i, arg := range q.Args {
				// Nullable text columns are queued as fresh pointers.
				if sp, ok := arg.(*string); ok && sp != nil {
					arg = *sp
				}
				args[i] = arg
			}
			out = append(out, fmt.Sprintf("%s %v", q.Cmd, args))
		}
	}
	return out
}

func (e *statementEngine) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = nil
}

func TestPipelineTransferBlock(t *testing.T) {
	node := substratetest.NewNode(scaletest.NewRuntime(chainName, 9430))
	for i := 1; i < 100; i++ {
		node.AddBlock(substratetest.BlockSpec{})
	}
	node.Finalize(99)

	engine := &statementEngine{writer: postgres.NewWriter(postgres.WriteModePhased, log.NewDefaultLogger("e2e"))}
	p := startPipeline(t, node, engine)
	defer p.stop(t)

	// Streaming starts at the finalized head.
	require.Eventually(t, func() bool { return engine.written(99) }, pipelineTimeout, 10*time.Millisecond)

	alice, bob := scaletest.Account(1), scaletest.Account(2)
	number := node.AddBlock(substratetest.BlockSpec{
		Timestamp:  1_690_000_000_000,
		Extrinsics: [][]byte{scaletest.TransferKeepAlive(alice, bob, 5_000_000_000, 0)},
		Events: scaletest.Events(
			scaletest.Event{Phase: 0, Extrinsic: 0, Body: scaletest.Transfer(alice, bob, 5_000_000_000)},
			scaletest.Event{Phase: 0, Extrinsic: 0, Body: scaletest.ExtrinsicSuccess()},
		),
	})
	require.EqualValues(t, 100, number)
	node.Finalize(number)
	require.Eventually(t, func() bool { return engine.written(100) }, pipelineTimeout, 10*time.Millisecond)

	blocks := engine.rows("blocks")
	require.Len(t, blocks, 2)
	require.Equal(t, int64(100), blocks[1][0])

	extrinsics := engine.rows("extrinsics")
	require.Len(t, extrinsics, 1)
	require.Equal(t, "100-0", extrinsics[0][0])
	require.Equal(t, "Balances", extrinsics[0][6])
	require.Equal(t, "transfer_keep_alive", extrinsics[0][7])
	require.Equal(t, true, extrinsics[0][8])

	events := engine.rows("events")
	require.Len(t, events, 2)
	require.Equal(t, "100-0", events[0][0])
	require.Equal(t, "100-0", events[0][3])
	require.Equal(t, "Transfer", events[0][7])
	require.Equal(t, extrinsics[0][3], events[0][5], "extrinsic hash")

	// Writing the same block again issues the same keyed upserts.
	payload := engine.lastPayload()
	engine.reset()
	require.NoError(t, engine.Write(context.Background(), chainName, payload))
	first := engine.statements()
	engine.reset()
	require.NoError(t, engine.Write(context.Background(), chainName, payload))
	require.Equal(t, first, engine.statements())
	for _, stmt := range first {
		require.Contains(t, stmt, "ON CONFLICT")
	}
}
