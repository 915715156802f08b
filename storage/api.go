// Package storage defines storage interfaces.
package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/hyperdot/hyperdot-node/common"
)

// QueryBatch represents a batch of queries to be executed together.
type QueryBatch struct {
	items []*BatchItem
}

// BatchItem is one queued statement.
type BatchItem struct {
	Cmd  string
	Args []interface{}
}

// Queue adds query to a batch.
func (b *QueryBatch) Queue(cmd string, args ...interface{}) {
	b.items = append(b.items, &BatchItem{
		Cmd:  cmd,
		Args: args,
	})
}

// Extend merges another batch into the current batch.
func (b *QueryBatch) Extend(qb *QueryBatch) {
	if qb != nil {
		b.items = append(b.items, qb.items...)
	}
}

// Len returns the number of queries in the batch.
func (b *QueryBatch) Len() int {
	return len(b.items)
}

// AsPgxBatch converts a QueryBatch to a pgx.Batch.
func (b *QueryBatch) AsPgxBatch() pgx.Batch {
	pgxBatch := pgx.Batch{}
	for _, item := range b.items {
		pgxBatch.Queue(item.Cmd, item.Args...)
	}
	return pgxBatch
}

// Queries returns the queries in the batch. Each item of the returned slice
// is composed of the SQL command and its arguments.
func (b *QueryBatch) Queries() []*BatchItem {
	return b.items
}

// QueryResults represents the results from a read query.
type QueryResults = pgx.Rows

// QueryResult represents the result from a read query.
type QueryResult = pgx.Row

// Rows is the engine-independent result of an ad-hoc query. Values are
// JSON-ready.
type Rows struct {
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
}

// Len returns the number of rows.
func (r *Rows) Len() int {
	return len(r.Rows)
}

// Column describes one column of a table in a chain database.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Table is one table of a chain database and its columns in ordinal order.
type Table struct {
	Schema  string   `json:"schema"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// DataEngine persists extracted blocks.
type DataEngine interface {
	// Name identifies the engine in logs and errors, e.g. "postgres".
	Name() string

	// Write persists one block for chain. It returns an error wrapping
	// common.ErrChainNotRegistered when the engine does not serve chain.
	Write(ctx context.Context, chain string, payload common.BlockPayload) error

	// Close releases the engine's connections.
	Close()
}

// QueryEngine is a DataEngine that answers ad-hoc queries.
type QueryEngine interface {
	DataEngine

	// Query runs sql verbatim against chain's database.
	Query(ctx context.Context, chain string, sql string) (*Rows, error)

	// Schema lists the user tables of chain's database.
	Schema(ctx context.Context, chain string) ([]Table, error)
}

// ConnectionRegistry resolves a chain name to its connection. It is
// populated once and read concurrently afterwards.
type ConnectionRegistry[C any] interface {
	Get(chain string) (C, bool)
}
