package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperdot/hyperdot-node/storage"
)

func TestSanitizeString(t *testing.T) {
	for _, tc := range []struct {
		text      string
		sanitized string
	}{
		{"", ""},
		{"a", "a"},
		{"a\000\000b", "a??b"},
		{"a\000", "a?"},
		{"\xc5z", "?z"},
		{"päivää", "päivää"},
	} {
		require.Equal(t, tc.sanitized, storage.SanitizeString(tc.text), "text %q", tc.text)
	}
}

func TestSanitizeValue(t *testing.T) {
	v := map[string]interface{}{
		"k\000": []interface{}{"a\000", 1.5, map[string]interface{}{"x": "\xc5"}},
		"n":     nil,
	}
	require.Equal(t, map[string]interface{}{
		"k?": []interface{}{"a?", 1.5, map[string]interface{}{"x": "?"}},
		"n":  nil,
	}, storage.SanitizeValue(v))
}

func TestQueryBatch(t *testing.T) {
	var batch storage.QueryBatch
	batch.Queue("INSERT INTO blocks (number) VALUES ($1)", 1)

	other := &storage.QueryBatch{}
	other.Queue("INSERT INTO events (id) VALUES ($1)", "1-0")
	other.Queue("SELECT 1")
	batch.Extend(other)
	batch.Extend(nil)

	require.Equal(t, 3, batch.Len())
	queries := batch.Queries()
	require.Equal(t, "SELECT 1", queries[2].Cmd)
	require.Empty(t, queries[2].Args)
	require.Equal(t, []interface{}{"1-0"}, queries[1].Args)

	pgxBatch := batch.AsPgxBatch()
	require.Equal(t, 3, pgxBatch.Len())
}

func TestRegistry(t *testing.T) {
	r := storage.NewRegistry[int]()
	r.Register("Westend", 2)
	r.Register("Polkadot", 1)

	v, ok := r.Get("Polkadot")
	require.True(t, ok)
	require.Equal(t, 1, v)

	_, ok = r.Get("Kusama")
	require.False(t, ok)

	require.Equal(t, []string{"Polkadot", "Westend"}, r.Chains())

	sum := 0
	r.Each(func(_ string, v int) { sum += v })
	require.Equal(t, 3, sum)

	var reg storage.ConnectionRegistry[int] = r
	_, ok = reg.Get("Westend")
	require.True(t, ok)
}
