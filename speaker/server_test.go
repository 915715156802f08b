package speaker

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"github.com/hyperdot/hyperdot-node/common"
	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/storage"
)

type recordingWriter struct {
	mu   sync.Mutex
	reqs []*common.WriteBlock
	err  error
}

func (w *recordingWriter) WriteBlock(_ context.Context, req *common.WriteBlock) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reqs = append(w.reqs, req)
	return w.err
}

func newTestServer(t *testing.T, w BlockWriter) *rpc.Server {
	server, err := NewServer(w, log.NewDefaultLogger("speaker-test"))
	require.NoError(t, err)
	t.Cleanup(server.Stop)
	return server
}

func testRequest() *common.WriteBlock {
	return &common.WriteBlock{
		Chain: "polkadot",
		Kind:  common.ChainKindPolkadot,
		Blocks: []*common.Block{{
			Header: common.Header{BlockNumber: 12, BlockHash: []byte{0x01, 0x02}},
			Body: common.Body{Extrinsics: []common.Extrinsic{{
				ID:         "12-0",
				ModName:    "Timestamp",
				CallName:   "set",
				CallParams: []byte(`{"now":1700000000000}`),
				Result:     true,
			}}},
		}},
	}
}

func TestServerRoundTrip(t *testing.T) {
	w := &recordingWriter{}
	server := newTestServer(t, w)
	client := NewClient("node-a", rpc.DialInProc(server))
	defer client.Close()

	require.NoError(t, client.WriteBlock(context.Background(), testRequest()))
	require.Len(t, w.reqs, 1)
	got := w.reqs[0]
	require.Equal(t, "polkadot", got.Chain)
	require.Equal(t, common.ChainKindPolkadot, got.Kind)
	require.EqualValues(t, 12, got.Blocks[0].Header.BlockNumber)
	require.Equal(t, []byte{0x01, 0x02}, []byte(got.Blocks[0].Header.BlockHash))
	require.JSONEq(t, `{"now":1700000000000}`, string(got.Blocks[0].Body.Extrinsics[0].CallParams))
}

func TestServerErrors(t *testing.T) {
	w := &recordingWriter{}
	server := newTestServer(t, w)
	client := NewClient("node-a", rpc.DialInProc(server))
	defer client.Close()
	ctx := context.Background()

	// Partial engine failures are acknowledged.
	w.err = &storage.FanoutError{
		Failures:  []storage.EngineFailure{{Engine: "redis", Block: 12, Err: errors.New("down")}},
		Succeeded: []string{"postgres"},
	}
	require.NoError(t, client.WriteBlock(ctx, testRequest()))

	w.err = common.ErrUnsupportedChainKind
	err := client.WriteBlock(ctx, testRequest())
	require.ErrorContains(t, err, "unsupported chain kind")
	require.ErrorContains(t, err, "node-a")
}

func TestDialHTTP(t *testing.T) {
	w := &recordingWriter{}
	httpServer := httptest.NewServer(newTestServer(t, w))
	defer httpServer.Close()

	client, err := Dial(context.Background(), "node-a", httpServer.URL)
	require.NoError(t, err)
	defer client.Close()
	require.Equal(t, "node-a", client.Name())

	require.NoError(t, client.WriteBlock(context.Background(), testRequest()))
	require.Len(t, w.reqs, 1)
}

func TestEndpointURL(t *testing.T) {
	require.Equal(t, "http://127.0.0.1:15722", EndpointURL("127.0.0.1:15722"))
	require.Equal(t, "ws://node:15722", EndpointURL("ws://node:15722"))
}
