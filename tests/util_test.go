package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperdot/hyperdot-node/api"
	"github.com/hyperdot/hyperdot-node/storage"
)

// growingChain answers max(number) queries with a height that rises by one
// on every request.
func growingChain(t *testing.T) *httptest.Server {
	var height atomic.Int64
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.RunQueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, api.RootPath+"/query/run/postgres", r.URL.Path)
		require.Equal(t, "polkadot", req.Chain)

		resp := api.RunQueryResponse{
			Rows: &storage.Rows{
				Columns: []string{"latest"},
				Rows:    []map[string]interface{}{{"latest": height.Add(1)}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestAfter(t *testing.T) {
	srv := growingChain(t)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out := <-After(ctx, srv.URL, "postgres", "polkadot", 3)
	require.LessOrEqual(t, int64(3), out)
}

func TestAfterTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.Equal(t, int64(0), <-After(ctx, srv.URL, "postgres", "polkadot", 1))
}

func TestGetFrom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != api.RootPath+"/system/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	var health api.HealthResponse
	require.NoError(t, GetFrom(context.Background(), srv.URL, api.RootPath+"/system/health", &health))
	require.Equal(t, "ok", health.Status)

	err := GetFrom(context.Background(), srv.URL, "/missing", &health)
	require.ErrorContains(t, err, "status 404")
}
