package reaper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openingrange/internal/durablestore"
)

type fakeResultStore struct {
	values  map[string][]byte
	deleted []string
}

func (f *fakeResultStore) ScanKeys(_ context.Context, _ string) ([]string, error) {
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *fakeResultStore) MGet(_ context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = f.values[k]
	}
	return out, nil
}

func (f *fakeResultStore) Delete(_ context.Context, keys []string) error {
	f.deleted = append(f.deleted, keys...)
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

type fakeInserter struct {
	inserted []durablestore.ResultRow
	err      error
}

func (f *fakeInserter) InsertIgnore(rows []durablestore.ResultRow, _ int) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, rows...)
	return nil
}

func TestRunFiltersAndLifecyclesSuccesses(t *testing.T) {
	store := &fakeResultStore{values: map[string][]byte{
		"celery-task-meta-1": []byte(`{"status":"SUCCESS","task_id":"1","result":{"stops_triggered":1,"trades_triggered":2,"net_profit":5.5,"average_holding_period":30,"trade_stats":{}}}`),
		"celery-task-meta-2": []byte(`{"status":"FAILURE","task_id":"2","result":{}}`),
		"celery-task-meta-3": []byte(`{"status":"SUCCESS","task_id":"3","result":{"stops_triggered":0,"trades_triggered":0}}`), // missing net_profit
		"unrelated":          []byte(`not json`),
	}}
	inserter := &fakeInserter{}

	report, err := Run(context.Background(), store, inserter)
	require.NoError(t, err)

	assert.Equal(t, 1, report.RowsLifecycled)
	require.Len(t, inserter.inserted, 1)
	assert.Equal(t, "1", inserter.inserted[0].TradeID)
	assert.Equal(t, 5.5, inserter.inserted[0].NetProfit)

	assert.Contains(t, store.deleted, "celery-task-meta-1")
	assert.NotContains(t, store.deleted, "celery-task-meta-2")
	assert.NotContains(t, store.deleted, "celery-task-meta-3")
}

func TestRunNoMatchingKeysIsNoop(t *testing.T) {
	store := &fakeResultStore{values: map[string][]byte{}}
	inserter := &fakeInserter{}

	report, err := Run(context.Background(), store, inserter)
	require.NoError(t, err)
	assert.Equal(t, 0, report.RowsLifecycled)
}

func TestRunLeavesKeysOnInsertError(t *testing.T) {
	store := &fakeResultStore{values: map[string][]byte{
		"celery-task-meta-1": []byte(`{"status":"SUCCESS","task_id":"1","result":{"net_profit":1.0}}`),
	}}
	inserter := &fakeInserter{err: assert.AnError}

	_, err := Run(context.Background(), store, inserter)
	require.Error(t, err)
	assert.Empty(t, store.deleted)
	assert.Contains(t, store.values, "celery-task-meta-1")
}

// TestRunIsIdempotent exercises invariant 6: running the reaper twice
// against the same drained state produces no further inserts the
// second time.
func TestRunIsIdempotent(t *testing.T) {
	store := &fakeResultStore{values: map[string][]byte{
		"celery-task-meta-1": []byte(`{"status":"SUCCESS","task_id":"1","result":{"net_profit":2.0}}`),
	}}
	inserter := &fakeInserter{}

	_, err := Run(context.Background(), store, inserter)
	require.NoError(t, err)
	require.Len(t, inserter.inserted, 1)

	report, err := Run(context.Background(), store, inserter)
	require.NoError(t, err)
	assert.Equal(t, 0, report.RowsLifecycled)
	assert.Len(t, inserter.inserted, 1)
}
