package warehouse

import (
	"context"
	"database/sql"
	"fmt"
)

// TableStatus summarizes one warehouse table for reporting.
type TableStatus struct {
	Table         string
	Rows          int64
	LastExtracted sql.NullTime
}

// Status reports row counts and the latest extraction timestamp for each of
// the nine tables, in load order.
func (w *Warehouse) Status(ctx context.Context) ([]TableStatus, error) {
	statuses := make([]TableStatus, 0, len(Tables))
	for _, table := range Tables {
		var status TableStatus
		status.Table = table
		query := fmt.Sprintf("SELECT COUNT(*), MAX(extracted_at) FROM %s", table)
		if err := w.db.QueryRowContext(ctx, query).Scan(&status.Rows, &status.LastExtracted); err != nil {
			return nil, fmt.Errorf("querying %s: %w", table, err)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// CountPlays returns the number of rows in the recently_played event log.
// Used to sanity-check append-only growth.
func (w *Warehouse) CountPlays(ctx context.Context) (int64, error) {
	var count int64
	err := w.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM recently_played").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting plays: %w", err)
	}
	return count, nil
}
