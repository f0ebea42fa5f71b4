package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tsch-sim/tsch-sim/sim/stats"
)

// Runs returns the runs of a campaign ordered by run number.
func (s *Store) Runs(ctx context.Context, campaignID string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, campaign_id, run_num, seed FROM runs
		WHERE campaign_id = ?
		ORDER BY run_num
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := make([]Run, 0)
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.CampaignID, &r.RunNum, &r.Seed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CycleCount returns the number of cycles recorded at the end of a run, and
// false while the run is incomplete.
func (s *Store) CycleCount(ctx context.Context, runID string) (int, bool, error) {
	var cycles sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT cycles FROM runs WHERE id = ?`, runID).Scan(&cycles)
	if err != nil {
		return 0, false, fmt.Errorf("query run %s: %w", runID, err)
	}
	if !cycles.Valid {
		return 0, false, nil
	}
	return int(cycles.Int64), true, nil
}

// Series returns the value of column name for every cycle of a run, by cycle.
func (s *Store) Series(ctx context.Context, runID, name string) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT value FROM cycle_values
		WHERE run_id = ? AND name = ?
		ORDER BY cycle
	`, runID, name)
	if err != nil {
		return nil, fmt.Errorf("query series %s: %w", name, err)
	}
	defer rows.Close()

	out := make([]float64, 0)
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan series %s: %w", name, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Summary returns the stored summary of a run ordered by column name.
func (s *Store) Summary(ctx context.Context, runID string) ([]stats.ColumnSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, mean, std FROM run_summaries
		WHERE run_id = ?
		ORDER BY name
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	out := make([]stats.ColumnSummary, 0)
	for rows.Next() {
		var c stats.ColumnSummary
		if err := rows.Scan(&c.Name, &c.Mean, &c.Std); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
