// Package warehouse owns the analytics database: connection management, table
// schema, the table-specific load strategies, and the read queries the status
// reporting commands use.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"
)

type Warehouse struct {
	db  *sql.DB
	log zerolog.Logger
}

// New opens the warehouse database at path. DuckDB holds a file lock, so a
// concurrently running report can make the first ping fail; ping is retried
// briefly before giving up.
func New(path string, log zerolog.Logger) (*Warehouse, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("opening warehouse %s: %w", path, err)
	}

	err = retry.Do(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return db.PingContext(ctx)
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging warehouse %s: %w", path, err)
	}

	return &Warehouse{db: db, log: log}, nil
}

func (w *Warehouse) Close() error {
	return w.db.Close()
}

// EnsureSchema provisions the nine tables if they do not exist yet.
func (w *Warehouse) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}
