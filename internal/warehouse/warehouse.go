// Package warehouse wraps a database/sql connection pool against the
// historical tick store, grounded on store/strategy.go's raw-SQL
// idiom (parameterized queries, explicit *sql.DB handle rather than a
// package-level singleton) but adapted from that file's read/write
// CRUD-of-configs shape to this package's read-only tick queries.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"openingrange/internal/model"
)

// Warehouse is a thin, read-only client over the tick table.
// Connection pooling (SetMaxOpenConns / SetMaxIdleConns) is configured
// by the caller before NewWarehouse is constructed, so the pool is
// built once in main and passed down rather than opened at
// package-init time (spec §9).
type Warehouse struct {
	db *sql.DB
}

// NewWarehouse wraps an already-opened *sql.DB.
func NewWarehouse(db *sql.DB) *Warehouse {
	return &Warehouse{db: db}
}

// OpeningRangeRows scopes each requested day to
// [dayStart, dayStart+duration] for one ticker and returns every tick
// in that window, ordered oldest to newest.
//
// The original Python (data_collection.py's get_opening_range_data)
// builds this predicate by string-concatenating one "OR timestamp_utc
// BETWEEN ..." clause per day directly into the SQL text. That is
// vulnerable to injection if day values are ever attacker-influenced
// and is needlessly slow to parse for large day lists; this
// implementation instead binds every day as a placeholder parameter.
func (w *Warehouse) OpeningRangeRows(ctx context.Context, ticker string, dayStarts []int64, duration time.Duration) ([]model.Tick, error) {
	if len(dayStarts) == 0 {
		return nil, nil
	}

	durSeconds := int64(duration / time.Second)

	var clauses []string
	args := make([]interface{}, 0, len(dayStarts)*2+1)
	for _, d := range dayStarts {
		clauses = append(clauses, "(timestamp_utc BETWEEN ? AND ?)")
		args = append(args, d, d+durSeconds)
	}
	args = append(args, ticker)

	query := fmt.Sprintf(
		`SELECT timestamp_utc, ticker, underlying FROM ticks WHERE (%s) AND ticker = ? ORDER BY timestamp_utc ASC`,
		strings.Join(clauses, " OR "),
	)

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query opening range rows: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// IntradayRows returns the full day's ticks for one ticker, used by
// the compressor.
func (w *Warehouse) IntradayRows(ctx context.Context, ticker string, dayStart int64, duration time.Duration) ([]model.Tick, error) {
	durSeconds := int64(duration / time.Second)

	rows, err := w.db.QueryContext(ctx, `
		SELECT DISTINCT timestamp_utc, ticker, underlying
		FROM ticks
		WHERE timestamp_utc BETWEEN ? AND ?
		AND ticker = ?
		ORDER BY timestamp_utc ASC
	`, dayStart, dayStart+durSeconds, ticker)
	if err != nil {
		return nil, fmt.Errorf("query intraday rows: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

func scanTicks(rows *sql.Rows) ([]model.Tick, error) {
	var out []model.Tick
	for rows.Next() {
		var t model.Tick
		if err := rows.Scan(&t.TimestampUTC, &t.Ticker, &t.Underlying); err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// EnsureSchema bootstraps the ticks table for local development and
// tests, matching store/strategy.go's CREATE TABLE IF NOT EXISTS
// bootstrap idiom. Production warehouses own their own schema
// management (spec §1 — the warehouse itself is out of scope beyond
// this bootstrap).
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ticks (
			timestamp_utc BIGINT NOT NULL,
			ticker VARCHAR(16) NOT NULL,
			underlying DOUBLE NOT NULL,
			INDEX idx_ticks_ticker_ts (ticker, timestamp_utc)
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure ticks schema: %w", err)
	}
	return nil
}
