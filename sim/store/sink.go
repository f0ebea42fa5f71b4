package store

import (
	"context"
	"fmt"

	"github.com/tsch-sim/tsch-sim/sim/stats"
)

// RunSink writes the rows of one run. It implements stats.Sink.
// stats.Sink methods take no context, so the run's context is held here and
// bounds every statement the sink issues.
type RunSink struct {
	ctx   context.Context
	store *Store
	runID string
}

// Sink returns a stats.Sink writing under runID. The run must have been
// recorded with WriteRun.
func (s *Store) Sink(ctx context.Context, runID string) *RunSink {
	return &RunSink{ctx: ctx, store: s, runID: runID}
}

// WriteRow stores every numeric column of r except runNum and cycle, which
// are part of the key.
func (k *RunSink) WriteRow(r stats.Row) error {
	tx, err := k.store.db.BeginTx(k.ctx, nil)
	if err != nil {
		return fmt.Errorf("write cycle %d: %w", r.Cycle, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(k.ctx, `
		INSERT INTO cycle_values (run_id, cycle, slot, name, value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, cycle, name) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write cycle %d: %w", r.Cycle, err)
	}
	defer stmt.Close()

	for _, name := range r.Columns() {
		if name == stats.ColRunNum || name == stats.ColCycle {
			continue
		}
		v, ok := r.Float(name)
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(k.ctx, k.runID, r.Cycle, int64(r.Slot), name, v); err != nil {
			return fmt.Errorf("write cycle %d %s: %w", r.Cycle, name, err)
		}
	}
	return tx.Commit()
}

// EndRun stores the run summary and the number of collected cycles.
func (k *RunSink) EndRun(sum stats.RunSummary) error {
	tx, err := k.store.db.BeginTx(k.ctx, nil)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(k.ctx, `UPDATE runs SET cycles = ? WHERE id = ?`, sum.Cycles, k.runID); err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	for _, c := range sum.Columns {
		_, err := tx.ExecContext(k.ctx, `
			INSERT INTO run_summaries (run_id, name, mean, std)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(run_id, name) DO UPDATE SET mean = excluded.mean, std = excluded.std
		`, k.runID, c.Name, c.Mean, c.Std)
		if err != nil {
			return fmt.Errorf("end run %s: %w", c.Name, err)
		}
	}
	return tx.Commit()
}
