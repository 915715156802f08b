package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/hyperdot/hyperdot-node/common"
	"github.com/hyperdot/hyperdot-node/config"
	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/metrics"
	"github.com/hyperdot/hyperdot-node/storage"
)

// WriteMode decides whether the four upsert phases of a block share one
// transaction.
type WriteMode string

const (
	// WriteModePhased commits each phase on its own. A failing phase stops
	// the later ones; earlier phases stay committed.
	WriteModePhased WriteMode = config.WriteModePhased
	// WriteModeTransactional commits all phases of a block atomically.
	WriteModeTransactional WriteMode = config.WriteModeTransactional
)

// ParseWriteMode parses a configured mode. Empty means phased.
func ParseWriteMode(s string) (WriteMode, error) {
	if err := config.ValidateWriteMode(s); err != nil {
		return "", err
	}
	if s == "" {
		return WriteModePhased, nil
	}
	return WriteMode(s), nil
}

// Batcher is where a Writer submits its statements.
type Batcher interface {
	SendBatch(ctx context.Context, batch *storage.QueryBatch) error
}

type phase struct {
	table string
	queue func(batch *storage.QueryBatch, b *common.Block) error
}

var phases = []phase{
	{"blocks", queueHeader},
	{"block_logs", queueLogs},
	{"extrinsics", queueExtrinsics},
	{"events", queueEvents},
}

// Writer upserts block record sets. Every row is keyed by a natural id, so
// writing the same block twice leaves the same rows.
type Writer struct {
	mode    WriteMode
	metrics metrics.DatabaseMetrics
	logger  *log.Logger
}

func NewWriter(mode WriteMode, logger *log.Logger) *Writer {
	return &Writer{
		mode:    mode,
		metrics: metrics.NewDefaultDatabaseMetrics(moduleName),
		logger:  logger.WithModule("postgres_writer"),
	}
}

// Mode returns the configured write mode.
func (w *Writer) Mode() WriteMode {
	return w.mode
}

// Write persists b for chain through db.
func (w *Writer) Write(ctx context.Context, chain string, db Batcher, b *common.Block) error {
	number := b.Header.BlockNumber
	if w.mode == WriteModeTransactional {
		batch := &storage.QueryBatch{}
		for _, p := range phases {
			if err := p.queue(batch, b); err != nil {
				return fmt.Errorf("block %d: %s: %w", number, p.table, err)
			}
		}
		if err := w.send(ctx, chain, "write_block", db, batch); err != nil {
			return fmt.Errorf("block %d: %w", number, err)
		}
		w.logger.Debug("block written", "chain", chain, "block", number, "statements", batch.Len())
		return nil
	}

	for _, p := range phases {
		batch := &storage.QueryBatch{}
		if err := p.queue(batch, b); err != nil {
			return fmt.Errorf("block %d: %s: %w", number, p.table, err)
		}
		if err := w.send(ctx, chain, "upsert_"+p.table, db, batch); err != nil {
			return fmt.Errorf("block %d: upsert %s: %w", number, p.table, err)
		}
	}
	w.logger.Debug("block written", "chain", chain, "block", number)
	return nil
}

func (w *Writer) send(ctx context.Context, chain string, operation string, db Batcher, batch *storage.QueryBatch) error {
	if batch.Len() == 0 {
		return nil
	}
	timer := w.metrics.DatabaseLatencies(chain, operation)
	defer timer.ObserveDuration()

	err := db.SendBatch(ctx, batch)
	w.metrics.DatabaseOperations(chain, operation, metrics.StatusOf(err)).Inc()
	return err
}

func hexOrNil(b []byte) *string {
	if b == nil {
		return nil
	}
	s := hexutil.Encode(b)
	return &s
}

// jsonValue prepares decoded params or values for a JSONB column. Postgres
// rejects the NUL character in JSONB strings.
func jsonValue(raw json.RawMessage) (interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if !bytes.Contains(raw, []byte(`\u0000`)) {
		return string(raw), nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	sanitized, err := json.Marshal(storage.SanitizeValue(v))
	if err != nil {
		return nil, err
	}
	return string(sanitized), nil
}

func queueHeader(batch *storage.QueryBatch, b *common.Block) error {
	h := &b.Header
	batch.Queue(upsertBlock,
		int64(h.BlockNumber),
		int64(h.BlockTimestamp),
		hexutil.Encode(h.BlockHash),
		hexutil.Encode(h.ParentHash),
		hexutil.Encode(h.ExtrinsicsRoot),
		hexutil.Encode(h.StateRoot),
		h.IsFinished,
		hexOrNil(h.Validator),
		int64(h.SpecVersion),
		[]byte(h.BlockHash),
		[]byte(h.ParentHash),
		[]byte(h.ExtrinsicsRoot),
		[]byte(h.StateRoot),
		[]byte(h.Validator),
	)
	return nil
}

func queueLogs(batch *storage.QueryBatch, b *common.Block) error {
	for _, l := range b.Logs {
		var engine *string
		if l.Engine != "" {
			engine = &l.Engine
		}
		batch.Queue(upsertBlockLog,
			l.ID,
			int64(l.BlockNumber),
			string(l.Type),
			hexOrNil(l.Data),
			engine,
		)
	}
	return nil
}

func queueExtrinsics(batch *storage.QueryBatch, b *common.Block) error {
	for _, e := range b.Body.Extrinsics {
		params, err := jsonValue(e.CallParams)
		if err != nil {
			return fmt.Errorf("extrinsic %s: call params: %w", e.ID, err)
		}
		batch.Queue(upsertExtrinsic,
			e.ID,
			int64(e.BlockNumber),
			int64(e.BlockTimestamp),
			hexutil.Encode(e.ExtrinsicHash),
			e.IsSigned,
			hexOrNil(e.Signer),
			storage.SanitizeString(e.ModName),
			storage.SanitizeString(e.CallName),
			e.Result,
			params,
			[]byte(e.ExtrinsicHash),
			[]byte(e.Signer),
		)
	}
	return nil
}

func queueEvents(batch *storage.QueryBatch, b *common.Block) error {
	for _, ev := range b.Body.Events {
		values, err := jsonValue(ev.Values)
		if err != nil {
			return fmt.Errorf("event %s: values: %w", ev.ID, err)
		}
		batch.Queue(upsertEvent,
			ev.ID,
			int64(ev.BlockNumber),
			int64(ev.BlockTimestamp),
			ev.ExtrinsicID,
			int64(ev.ExtrinsicIndex),
			hexutil.Encode(ev.ExtrinsicHash),
			storage.SanitizeString(ev.ModName),
			storage.SanitizeString(ev.EventName),
			int64(ev.EventIndex),
			int16(ev.Phase),
			values,
		)
	}
	return nil
}
