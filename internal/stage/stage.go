// Package stage serializes and uploads per-day opening ranges and
// compressed series into the broker's staging namespaces (DB 1 and
// DB 2), grounded on original_source/backtest/caching.py's StageRedis:
// that class batches asyncio tasks at 100 in flight ("seems to freak
// out above 500 connections in the pool"); this package achieves the
// same bound idiomatically with golang.org/x/sync/errgroup's
// SetLimit, rather than hand-rolled batching of goroutines.
package stage

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"openingrange/internal/model"
)

// maxInFlight bounds concurrent uploads per call, per spec §4.3 /
// §5.
const maxInFlight = 100

// Uploader is the subset of broker.Client the staging writer needs.
type Uploader interface {
	Set(ctx context.Context, key string, value []byte) error
}

// OpeningRanges uploads date -> OpeningRange into namespace A (DB 1).
func OpeningRanges(ctx context.Context, uploader Uploader, byDate map[string]model.OpeningRange) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)

	for date, rng := range byDate {
		date, rng := date, rng
		g.Go(func() error {
			payload, err := json.Marshal(rng)
			if err != nil {
				return fmt.Errorf("marshal opening range %s: %w", date, err)
			}
			if err := uploader.Set(ctx, date, payload); err != nil {
				return fmt.Errorf("upload opening range %s: %w", date, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// CompressedSeries uploads date -> CompressedSeries into namespace B
// (DB 2).
func CompressedSeries(ctx context.Context, uploader Uploader, byDate map[string]model.CompressedSeries) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)

	for date, series := range byDate {
		date, series := date, series
		g.Go(func() error {
			payload, err := json.Marshal(stringKeyedSeries(series))
			if err != nil {
				return fmt.Errorf("marshal compressed series %s: %w", date, err)
			}
			if err := uploader.Set(ctx, date, payload); err != nil {
				return fmt.Errorf("upload compressed series %s: %w", date, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// stringKeyedSeries converts the int64-keyed CompressedSeries into a
// string-keyed map. encoding/json would stringify integer map keys on
// its own, but doing it explicitly keeps the `"<ts>": price` wire
// shape spec §6.3 requires visible at the call site instead of
// implicit in the marshaler.
func stringKeyedSeries(series model.CompressedSeries) map[string]float64 {
	out := make(map[string]float64, len(series))
	for ts, price := range series {
		out[fmt.Sprintf("%d", ts)] = price
	}
	return out
}
