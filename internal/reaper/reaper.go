// Package reaper drains completed backtest results out of the
// broker's results keyspace (DB 0) into the durable store, ported
// from original_source/backtest/reaper.py's lifecycle_result_data
// task: non-blocking scan, bulk MGET, filter on status==SUCCESS with
// a net_profit field present, batch insert-ignore, then multi-delete
// the drained keys.
package reaper

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"openingrange/internal/durablestore"
	"openingrange/internal/telemetry/metrics"
)

// KeyPrefix is the completion-key prefix scanned in DB 0, matching
// the existing worker runtime's celery-task-meta-* convention
// (spec §4.6 step 1 / §6.3).
const KeyPrefix = "celery-task-meta-*"

// BatchSize bounds each durable-store insert, per spec §4.6 step 5.
const BatchSize = 5000

// ResultStore is the subset of broker.Client the reaper needs.
type ResultStore interface {
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	Delete(ctx context.Context, keys []string) error
}

// Inserter is the subset of durablestore.Store the reaper needs.
type Inserter interface {
	InsertIgnore(rows []durablestore.ResultRow, batchSize int) error
}

// taskMeta mirrors the existing worker runtime's result envelope:
// `<runtime>-task-meta-<uuid>` -> {status, task_id, result}.
type taskMeta struct {
	Status string          `json:"status"`
	TaskID string          `json:"task_id"`
	Result json.RawMessage `json:"result"`
}

// resultPayload is the subset of the worker's BacktestResult JSON the
// reaper needs to filter and transform (spec §6.3's "net_profit field
// present" filter, §4.6 step 4's row shape).
type resultPayload struct {
	StopsTriggered       int             `json:"stops_triggered"`
	TradesTriggered      int             `json:"trades_triggered"`
	NetProfit            *float64        `json:"net_profit"`
	AverageHoldingPeriod float64         `json:"average_holding_period"`
	TradeStats           json.RawMessage `json:"trade_stats"`
}

// Report summarizes one reaper run: the number of result rows
// inserted into the durable store.
type Report struct {
	RowsLifecycled int
}

// Run performs one scan-filter-insert-delete cycle.
func Run(ctx context.Context, store ResultStore, inserter Inserter) (Report, error) {
	timer := prometheus.NewTimer(metrics.ReaperBatchDurationSeconds)
	defer timer.ObserveDuration()

	keys, err := store.ScanKeys(ctx, KeyPrefix)
	if err != nil {
		return Report{}, fmt.Errorf("scan result keys: %w", err)
	}
	if len(keys) == 0 {
		return Report{}, nil
	}

	values, err := store.MGet(ctx, keys)
	if err != nil {
		return Report{}, fmt.Errorf("mget result keys: %w", err)
	}

	var rows []durablestore.ResultRow
	var toDelete []string

	for i, raw := range values {
		if raw == nil {
			continue
		}

		var meta taskMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			// Malformed entry: the reaper filters and drops it
			// (spec §7's "programmer error" handling), it does not
			// abort the whole batch.
			continue
		}
		if meta.Status != "SUCCESS" {
			continue
		}

		var payload resultPayload
		if err := json.Unmarshal(meta.Result, &payload); err != nil {
			continue
		}
		if payload.NetProfit == nil {
			continue
		}

		rows = append(rows, durablestore.ResultRow{
			TradeID:              meta.TaskID,
			StopsTriggered:       payload.StopsTriggered,
			TradesTriggered:      payload.TradesTriggered,
			NetProfit:            *payload.NetProfit,
			AverageHoldingPeriod: payload.AverageHoldingPeriod,
			TradeStats:           string(payload.TradeStats),
		})
		toDelete = append(toDelete, keys[i])
	}

	if len(rows) == 0 {
		return Report{}, nil
	}

	for start := 0; start < len(rows); start += BatchSize {
		end := start + BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := inserter.InsertIgnore(rows[start:end], BatchSize); err != nil {
			// Any SQL error aborts the current batch, logs (left to
			// the caller), and leaves the corresponding cache entries
			// in place for the next run (spec §4.6's at-least-once
			// failure semantics): no key is deleted, including the keys
			// of earlier batches that were already inserted; the next
			// run re-inserts those as no-ops.
			return Report{RowsLifecycled: start}, fmt.Errorf("insert results batch [%d:%d]: %w", start, end, err)
		}
	}

	if err := store.Delete(ctx, toDelete); err != nil {
		return Report{RowsLifecycled: len(rows)}, fmt.Errorf("delete drained keys: %w", err)
	}

	metrics.ReaperRowsLifecycledTotal.Add(float64(len(rows)))

	return Report{RowsLifecycled: len(rows)}, nil
}
