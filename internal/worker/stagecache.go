package worker

import (
	"context"
	"encoding/json"
	"strconv"

	"openingrange/internal/model"
)

// StageReader is the subset of broker.Client used to load every
// staged opening range / compressed series at pool startup.
type StageReader interface {
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	MGet(ctx context.Context, keys []string) ([][]byte, error)
}

// LoadOpeningRanges reads every staged date -> OpeningRange pair out of
// the broker's DB 1 namespace.
func LoadOpeningRanges(ctx context.Context, reader StageReader) (map[string]model.OpeningRange, error) {
	keys, err := reader.ScanKeys(ctx, "*")
	if err != nil {
		return nil, err
	}
	values, err := reader.MGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.OpeningRange, len(keys))
	for i, v := range values {
		if v == nil {
			continue
		}
		var rng model.OpeningRange
		if err := json.Unmarshal(v, &rng); err != nil {
			continue
		}
		out[keys[i]] = rng
	}
	return out, nil
}

// LoadCompressedSeries reads every staged date -> CompressedSeries
// pair out of the broker's DB 2 namespace.
func LoadCompressedSeries(ctx context.Context, reader StageReader) (map[string]model.CompressedSeries, error) {
	keys, err := reader.ScanKeys(ctx, "*")
	if err != nil {
		return nil, err
	}
	values, err := reader.MGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.CompressedSeries, len(keys))
	for i, v := range values {
		if v == nil {
			continue
		}
		var raw map[string]float64
		if err := json.Unmarshal(v, &raw); err != nil {
			continue
		}
		series := make(model.CompressedSeries, len(raw))
		for ts, price := range raw {
			tsInt, err := strconv.ParseInt(ts, 10, 64)
			if err != nil {
				continue
			}
			series[tsInt] = price
		}
		out[keys[i]] = series
	}
	return out, nil
}
