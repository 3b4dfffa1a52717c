package openingrange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderFirstRowIsOpenHighLow(t *testing.T) {
	b := NewBuilder(30 * time.Second)
	b.Add("MSFT", "2023-04-24", 1000, 100.0)

	got := b.Result()
	require.Contains(t, got, "MSFT")
	require.Contains(t, got["MSFT"], "2023-04-24")

	or := got["MSFT"]["2023-04-24"]
	assert.Equal(t, 100.0, or.OpenPrice)
	assert.Equal(t, 100.0, or.High)
	assert.Equal(t, 100.0, or.Low)
	assert.Equal(t, 1, or.CountTrades)
	assert.Equal(t, int64(1000), or.TradingStart)
}

func TestBuilderFoldsWithinWindow(t *testing.T) {
	b := NewBuilder(30 * time.Second)
	b.Add("MSFT", "2023-04-24", 1000, 100.0)
	b.Add("MSFT", "2023-04-24", 1010, 101.5)
	b.Add("MSFT", "2023-04-24", 1020, 99.0)

	or := b.Result()["MSFT"]["2023-04-24"]
	assert.Equal(t, 100.0, or.OpenPrice)
	assert.Equal(t, 101.5, or.High)
	assert.Equal(t, 99.0, or.Low)
	assert.Equal(t, 3, or.CountTrades)
	assert.Equal(t, int64(1020), or.TradingStart)
	assert.LessOrEqual(t, or.Low, or.OpenPrice)
	assert.LessOrEqual(t, or.OpenPrice, or.High)
}

func TestBuilderIgnoresRowsPastWindow(t *testing.T) {
	b := NewBuilder(30 * time.Second)
	b.Add("MSFT", "2023-04-24", 1000, 100.0)
	b.Add("MSFT", "2023-04-24", 1031, 500.0) // outside the 30s sub-window

	or := b.Result()["MSFT"]["2023-04-24"]
	assert.Equal(t, 100.0, or.High)
	assert.Equal(t, 1, or.CountTrades)
}

func TestBuilderMixedTickers(t *testing.T) {
	b := NewBuilder(30 * time.Second)
	b.Add("MSFT", "2023-04-24", 1000, 100.0)
	b.Add("AAPL", "2023-04-24", 1000, 50.0)

	got := b.Result()
	assert.Len(t, got, 2)
	assert.Equal(t, 100.0, got["MSFT"]["2023-04-24"].OpenPrice)
	assert.Equal(t, 50.0, got["AAPL"]["2023-04-24"].OpenPrice)
}
