// Package openingrange derives per-ticker, per-day opening-range
// summaries from a flat stream of warehouse ticks.
//
// The accumulator below is grounded on the teacher's VWAPCollector
// (trader/vwap_collector.go): a mutex-protected running aggregate that
// remembers the first bar's open and folds subsequent bars into
// running high/low, adapted here to the opening-range domain (no VWAP,
// a bounded sub-window, and multi-ticker/multi-day bucketing instead
// of a single day's bars).
package openingrange

import (
	"sync"
	"time"

	"openingrange/internal/model"
)

// DefaultDuration is the opening-range window, matching the original
// system's 30-second configuration for this strategy.
const DefaultDuration = 30 * time.Second

// bucket accumulates ticks for one (ticker, date) pair.
type bucket struct {
	mu           sync.Mutex
	openPrice    float64
	high         float64
	low          float64
	countTrades  int
	tradingStart int64
	firstSeenTS  int64
	initialized  bool
}

func (b *bucket) add(ts int64, price float64, window time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		b.openPrice = price
		b.high = price
		b.low = price
		b.countTrades = 1
		b.tradingStart = ts
		b.firstSeenTS = ts
		b.initialized = true
		return
	}

	// Support variable opening-range windows: ignore rows past the
	// configured sub-window, even if the warehouse query returned a
	// wider range.
	if ts > b.firstSeenTS+int64(window/time.Second) {
		return
	}

	b.countTrades++
	if price > b.high {
		b.high = price
	}
	if price < b.low {
		b.low = price
	}
	if ts > b.tradingStart {
		b.tradingStart = ts
	}
}

func (b *bucket) snapshot() model.OpeningRange {
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.OpeningRange{
		OpenPrice:    b.openPrice,
		High:         b.high,
		Low:          b.low,
		CountTrades:  b.countTrades,
		TradingStart: b.tradingStart,
	}
}

// Builder folds warehouse rows into ticker -> date -> OpeningRange.
// A Builder is safe for concurrent Add calls; each (ticker, date)
// bucket has its own lock, so rows for distinct buckets never
// contend.
type Builder struct {
	window time.Duration

	mu      sync.Mutex
	buckets map[string]map[string]*bucket
}

// NewBuilder constructs a Builder with the given opening-range
// sub-window. A zero window falls back to DefaultDuration.
func NewBuilder(window time.Duration) *Builder {
	if window <= 0 {
		window = DefaultDuration
	}
	return &Builder{
		window:  window,
		buckets: make(map[string]map[string]*bucket),
	}
}

// Add folds one row into its (ticker, date) bucket. date is the
// caller-derived calendar date for ts in the warehouse's local
// timezone (the builder itself is timezone-agnostic).
func (b *Builder) Add(ticker, date string, ts int64, price float64) {
	bk := b.bucketFor(ticker, date)
	bk.add(ts, price, b.window)
}

func (b *Builder) bucketFor(ticker, date string) *bucket {
	b.mu.Lock()
	defer b.mu.Unlock()

	byDate, ok := b.buckets[ticker]
	if !ok {
		byDate = make(map[string]*bucket)
		b.buckets[ticker] = byDate
	}
	bk, ok := byDate[date]
	if !ok {
		bk = &bucket{}
		byDate[date] = bk
	}
	return bk
}

// Result returns the accumulated ticker -> date -> OpeningRange
// mapping. Dates with no ticks never appear (weekends, holidays are
// silently absent, not an error).
func (b *Builder) Result() map[string]map[string]model.OpeningRange {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]map[string]model.OpeningRange, len(b.buckets))
	for ticker, byDate := range b.buckets {
		dates := make(map[string]model.OpeningRange, len(byDate))
		for date, bk := range byDate {
			dates[date] = bk.snapshot()
		}
		out[ticker] = dates
	}
	return out
}
