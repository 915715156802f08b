package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperdot/hyperdot-node/api"
)

const pollInterval = 50 * time.Millisecond

// GetFrom completes an HTTP GET against baseURL+path and unmarshals the
// response into v.
func GetFrom(ctx context.Context, baseURL string, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		return err
	}
	return do(req, v)
}

// PostTo sends body as JSON to baseURL+path and unmarshals the response
// into v.
func PostTo(ctx context.Context, baseURL string, path string, body interface{}, v interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(req, v)
}

func do(req *http.Request, v interface{}) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, body)
	}
	return json.Unmarshal(body, v)
}

// Query runs sql on chain through the query API at baseURL.
func Query(ctx context.Context, baseURL string, engine string, chain string, sql string) (*api.RunQueryResponse, error) {
	var resp api.RunQueryResponse
	err := PostTo(ctx, baseURL, api.RootPath+"/query/run/"+engine,
		api.RunQueryRequest{Engine: engine, Chain: chain, Query: sql}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Meta.Code != api.CodeSuccess {
		return nil, fmt.Errorf("query failed: %s", resp.Meta.Reason)
	}
	return &resp, nil
}

// After waits for block number to be stored for chain and then sends the
// highest stored number on the returned channel. It sends 0 if ctx ends
// first.
func After(ctx context.Context, baseURL string, engine string, chain string, number int64) <-chan int64 {
	out := make(chan int64, 1)
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			if latest := latestBlock(ctx, baseURL, engine, chain); latest >= number {
				out <- latest
				return
			}
			select {
			case <-ctx.Done():
				out <- 0
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

func latestBlock(ctx context.Context, baseURL string, engine string, chain string) int64 {
	resp, err := Query(ctx, baseURL, engine, chain, `SELECT max("number") AS latest FROM blocks`)
	if err != nil || resp.Rows == nil || len(resp.Rows.Rows) == 0 {
		return -1
	}
	// Decoded from JSON, so numbers arrive as float64.
	latest, ok := resp.Rows.Rows[0]["latest"].(float64)
	if !ok {
		return -1
	}
	return int64(latest)
}
