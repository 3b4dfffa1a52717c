package stage

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openingrange/internal/model"
)

type recordingUploader struct {
	mu   sync.Mutex
	sets map[string][]byte
}

func newRecordingUploader() *recordingUploader {
	return &recordingUploader{sets: make(map[string][]byte)}
}

func (r *recordingUploader) Set(_ context.Context, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[key] = value
	return nil
}

func TestOpeningRangesUploadsEveryDate(t *testing.T) {
	u := newRecordingUploader()
	byDate := map[string]model.OpeningRange{
		"2023-04-24": {OpenPrice: 100, High: 101, Low: 99, CountTrades: 3, TradingStart: 1000},
		"2023-04-25": {OpenPrice: 200, High: 201, Low: 199, CountTrades: 5, TradingStart: 2000},
	}

	require.NoError(t, OpeningRanges(context.Background(), u, byDate))
	require.Len(t, u.sets, 2)

	var got model.OpeningRange
	require.NoError(t, json.Unmarshal(u.sets["2023-04-24"], &got))
	assert.Equal(t, byDate["2023-04-24"], got)
}

func TestCompressedSeriesUploadsStringKeys(t *testing.T) {
	u := newRecordingUploader()
	byDate := map[string]model.CompressedSeries{
		"2023-04-24": {1000: 100.0, 1005: 100.5},
	}

	require.NoError(t, CompressedSeries(context.Background(), u, byDate))

	var got map[string]float64
	require.NoError(t, json.Unmarshal(u.sets["2023-04-24"], &got))
	assert.Equal(t, 100.0, got["1000"])
	assert.Equal(t, 100.5, got["1005"])
}
