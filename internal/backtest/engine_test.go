package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openingrange/internal/model"
)

func params(sd float64, scl, sco int, ld float64) model.StrategyParams {
	return model.StrategyParams{
		StopDistance:      sd,
		StopCountLimit:    scl,
		StopCooloffPeriod: sco,
		LimitDistance:     ld,
	}
}

// Scenario 1: immediate long win.
func TestDayImmediateLongWin(t *testing.T) {
	rng := model.OpeningRange{High: 100, Low: 95}
	series := model.CompressedSeries{
		1: 101,
		2: 106,
	}
	result := Day(rng, series, params(0.25, 4, 30, 5))

	require.Len(t, result.Trades, 1)
	tr := result.Trades[0]
	assert.Equal(t, model.Long, tr.Direction)
	assert.Equal(t, 101.0, tr.OpenPrice)
	assert.Equal(t, 106.0, tr.ClosePrice)
	assert.Equal(t, 5.0, tr.Profit)
	assert.Equal(t, 1, result.TradesTriggered)
	assert.Equal(t, 0, result.StopsTriggered)
}

// Scenario 2: stop then cooldown then re-entry.
func TestDayStopThenCooldownThenReentry(t *testing.T) {
	rng := model.OpeningRange{High: 100, Low: 95}
	t0 := int64(1000)
	series := model.CompressedSeries{
		t0:      101,
		t0 + 5:  100.5,
		t0 + 10: 101.2,
		t0 + 40: 106.2,
	}
	result := Day(rng, series, params(0.25, 4, 30, 5))

	require.Len(t, result.Trades, 2)

	first := result.Trades[0]
	assert.Equal(t, 101.0, first.OpenPrice)
	assert.Equal(t, 100.5, first.ClosePrice)
	assert.InDelta(t, -0.5, first.Profit, 1e-9)

	second := result.Trades[1]
	assert.Equal(t, t0+40, second.OpenTS)
	assert.Equal(t, 106.2, second.ClosePrice)
	assert.Equal(t, 1, result.StopsTriggered)
}

// Scenario 3: risk cap halts the day.
func TestDayRiskCapHaltsDay(t *testing.T) {
	rng := model.OpeningRange{High: 100, Low: 95}
	series := model.CompressedSeries{
		1:  101,
		2:  100.5, // stop 1
		10: 101,
		11: 100.5, // stop 2
		20: 101,
		21: 100.5, // stop 3
		30: 101,
		31: 100.5, // stop 4 -> risk cap reached
		40: 101,   // should be ignored: risk cap already hit at this point
		41: 106,
	}
	result := Day(rng, series, params(0.5, 4, 0, 5))

	assert.Equal(t, 4, result.StopsTriggered)
	assert.Equal(t, 4, result.TradesTriggered)
}

// Scenario 4: short-side win. The range breaks down to 90, then the
// limit distance of 5 is hit at 85.
func TestDayShortSideWin(t *testing.T) {
	rng := model.OpeningRange{High: 100, Low: 95}
	series := model.CompressedSeries{
		1: 90,
		2: 85,
	}
	result := Day(rng, series, params(0.25, 4, 30, 5))

	require.Len(t, result.Trades, 1)
	tr := result.Trades[0]
	assert.Equal(t, model.Short, tr.Direction)
	assert.Equal(t, 90.0, tr.OpenPrice)
	assert.Equal(t, 5.0, tr.Profit)
}

// Scenario 5: empty day (never breaches the range).
func TestDayEmptyNoBreaches(t *testing.T) {
	rng := model.OpeningRange{High: 100, Low: 95}
	series := model.CompressedSeries{
		1: 97,
		2: 98,
		3: 96,
	}
	result := Day(rng, series, params(0.25, 4, 30, 5))

	assert.Empty(t, result.Trades)
	assert.Equal(t, 0, result.TradesTriggered)
	assert.Equal(t, 0.0, result.NetProfit)
}

func TestDayEmptySeries(t *testing.T) {
	rng := model.OpeningRange{High: 100, Low: 95}
	result := Day(rng, model.CompressedSeries{}, params(0.25, 4, 30, 5))
	assert.Empty(t, result.Trades)
}

func TestRunDatesMissingOpeningRangeIsFatal(t *testing.T) {
	series := map[string]model.CompressedSeries{
		"2023-04-24": {1: 101},
	}
	_, err := RunDates(map[string]model.OpeningRange{}, series, params(0.25, 4, 30, 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingOpeningRange)
}
