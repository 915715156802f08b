package common

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDs(t *testing.T) {
	require.Equal(t, "100-0", ExtrinsicID(100, 0))
	require.Equal(t, "100-7", EventID(100, 7))
	require.Equal(t, "5-2", LogID(5, 2))
}

func TestPayloads(t *testing.T) {
	b := &Block{Header: Header{BlockNumber: 42}}
	w := &WriteBlock{Chain: "polkadot", Kind: ChainKindPolkadot, Blocks: []*Block{b}}

	payloads, err := w.Payloads()
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	require.Equal(t, ChainKindPolkadot, payloads[0].Kind)
	require.Same(t, b, payloads[0].Polkadot)
	require.EqualValues(t, 42, payloads[0].Number())

	w.Kind = ChainKindEthereum
	_, err = w.Payloads()
	require.True(t, errors.Is(err, ErrUnsupportedChainKind))
}

func TestParseChainKind(t *testing.T) {
	k, err := ParseChainKind("Polkadot")
	require.NoError(t, err)
	require.Equal(t, ChainKindPolkadot, k)

	k, err = ParseChainKind("ethereum")
	require.NoError(t, err)
	require.Equal(t, ChainKindEthereum, k)

	_, err = ParseChainKind("cosmos")
	require.Error(t, err)
}

func TestWriteBlockJSON(t *testing.T) {
	w := WriteBlock{
		Chain: "polkadot",
		Kind:  ChainKindPolkadot,
		Blocks: []*Block{{
			Header: Header{BlockNumber: 1, BlockHash: []byte{0xab}},
			Body: Body{Extrinsics: []Extrinsic{{
				ID:         "1-0",
				CallParams: json.RawMessage(`{"now":1}`),
			}}},
		}},
	}
	raw, err := json.Marshal(w)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"block_hash":"0xab"`)
	require.Contains(t, string(raw), `"chain_kind":"Polkadot"`)

	var decoded WriteBlock
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, w.Blocks[0].Header.BlockHash, decoded.Blocks[0].Header.BlockHash)
	require.JSONEq(t, `{"now":1}`, string(decoded.Blocks[0].Body.Extrinsics[0].CallParams))
}

func TestPhaseString(t *testing.T) {
	require.Equal(t, "Finalization", PhaseFinalization.String())
	require.Equal(t, "Phase(9)", Phase(9).String())
}
