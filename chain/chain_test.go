package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperdot/hyperdot-node/common"
)

func TestEventsOf(t *testing.T) {
	events := []EventRecord{
		{Index: 0, Phase: common.PhaseInitialization},
		{Index: 1, Phase: common.PhaseApplyExtrinsic, ExtrinsicIndex: 0},
		{Index: 2, Phase: common.PhaseApplyExtrinsic, ExtrinsicIndex: 1},
		{Index: 3, Phase: common.PhaseApplyExtrinsic, ExtrinsicIndex: 1},
		{Index: 4, Phase: common.PhaseFinalization},
	}

	got := EventsOf(events, 1)
	require.Len(t, got, 2)
	require.EqualValues(t, 2, got[0].Index)
	require.EqualValues(t, 3, got[1].Index)

	require.Len(t, EventsOf(events, 0), 1)
	require.Empty(t, EventsOf(events, 7))
}
