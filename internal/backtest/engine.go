// Package backtest implements the opening-range breakout state machine,
// ported from the original Python backtest_redux task
// (original_source/backtest/engine.py) into an explicit Go state
// machine: no-position -> long/short -> close (limit, stop, or
// end-of-day).
package backtest

import (
	"errors"
	"fmt"
	"sort"

	"openingrange/internal/model"
)

// ErrMissingOpeningRange and ErrMissingSeries are fatal per-work-item
// errors (spec §4.5's failure semantics / §7's "data absence" error
// kind). RunDates wraps ErrMissingOpeningRange with the date via
// fmt.Errorf so callers can errors.Is against the sentinel while still
// logging specifics. RunDates takes its dates from the series map, so
// it never returns ErrMissingSeries.
var (
	ErrMissingOpeningRange = errors.New("missing opening range for date")
	ErrMissingSeries       = errors.New("missing compressed series for date")
)

type side int

const (
	sideNone side = iota
	sideLong
	sideShort
)

// Day runs the breakout state machine over a single day's compressed
// series and opening range, returning the closed trades plus the
// aggregated DayResult.
func Day(rng model.OpeningRange, series model.CompressedSeries, params model.StrategyParams) *model.DayResult {
	timestamps := sortedKeys(series)
	if len(timestamps) == 0 {
		return &model.DayResult{Trades: []model.Trade{}}
	}
	endOfDayTS := timestamps[len(timestamps)-1]

	var (
		active             = sideNone
		stopPrice          float64
		limitPrice         float64
		stopsTriggered     int
		stopCooloffUntil   int64
		trades             []model.Trade
		openPrice          float64
		openTS             int64
	)

	for _, ts := range timestamps {
		price := series[ts]

		// 1. Risk cap: halt the day once the configured number of
		// stop-outs has been reached.
		if stopsTriggered == params.StopCountLimit {
			break
		}

		// 2. Cooldown: suppress entries until the cooloff expires.
		if ts < stopCooloffUntil {
			continue
		}

		switch active {
		case sideNone:
			switch {
			case price > rng.High:
				active = sideLong
				stopPrice = price - params.StopDistance
				limitPrice = price + params.LimitDistance
				openPrice = price
				openTS = ts
			case price < rng.Low:
				active = sideShort
				stopPrice = price + params.StopDistance
				limitPrice = price - params.LimitDistance
				openPrice = price
				openTS = ts
			}
			// A position opened on the day's last tick is closed at
			// that same tick, like any position still open at end of day.
			if active != sideNone && ts == endOfDayTS {
				dir := model.Long
				if active == sideShort {
					dir = model.Short
				}
				trades = append(trades, closeTrade(dir, openPrice, openTS, price, ts))
				goto done
			}

		case sideLong:
			switch {
			case price >= limitPrice || ts == endOfDayTS:
				trades = append(trades, closeTrade(model.Long, openPrice, openTS, price, ts))
				active = sideNone
				// Trend-following: one winning close per day is
				// enough; stop processing further ticks.
				goto done
			case price <= stopPrice:
				trades = append(trades, closeTrade(model.Long, openPrice, openTS, price, ts))
				stopsTriggered++
				stopCooloffUntil = ts + int64(params.StopCooloffPeriod)
				stopPrice, limitPrice = 0, 0
				active = sideNone
			}

		case sideShort:
			switch {
			case price <= limitPrice || ts == endOfDayTS:
				trades = append(trades, closeTrade(model.Short, openPrice, openTS, price, ts))
				active = sideNone
				goto done
			case price >= stopPrice:
				trades = append(trades, closeTrade(model.Short, openPrice, openTS, price, ts))
				stopsTriggered++
				stopCooloffUntil = ts + int64(params.StopCooloffPeriod)
				stopPrice, limitPrice = 0, 0
				active = sideNone
			}
		}
	}

done:
	return aggregate(trades, stopsTriggered)
}

// closeTrade builds a Trade record for a position closed at
// (closePrice, closeTS).
func closeTrade(dir model.Direction, openPrice float64, openTS int64, closePrice float64, closeTS int64) model.Trade {
	var profit float64
	if dir == model.Long {
		profit = closePrice - openPrice
	} else {
		profit = openPrice - closePrice
	}
	return model.Trade{
		OpenPrice:     openPrice,
		OpenTS:        openTS,
		Direction:     dir,
		ClosePrice:    closePrice,
		CloseTS:       closeTS,
		Profit:        profit,
		HoldingPeriod: closeTS - openTS,
	}
}

func aggregate(trades []model.Trade, stopsTriggered int) *model.DayResult {
	result := &model.DayResult{
		Trades:          trades,
		StopsTriggered:  stopsTriggered,
		TradesTriggered: len(trades),
	}
	if len(trades) == 0 {
		return result
	}

	var sumHP int64
	var sumProfit float64
	for _, tr := range trades {
		sumHP += tr.HoldingPeriod
		sumProfit += tr.Profit
	}
	result.AverageHoldingPeriod = float64(sumHP) / float64(len(trades))
	result.NetProfit = sumProfit
	return result
}

func sortedKeys(series model.CompressedSeries) []int64 {
	keys := make([]int64, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// RunDates runs Day for every date present in both openingRanges and
// series, in the shape the worker pool (internal/worker) consumes.
// A date staged in series but absent from openingRanges is a fatal
// error for the whole work item, per spec §4.5.
func RunDates(openingRanges map[string]model.OpeningRange, series map[string]model.CompressedSeries, params model.StrategyParams) (map[string]*model.DayResult, error) {
	out := make(map[string]*model.DayResult, len(series))
	for date, s := range series {
		rng, ok := openingRanges[date]
		if !ok {
			return nil, fmt.Errorf("date %s: %w", date, ErrMissingOpeningRange)
		}
		out[date] = Day(rng, s, params)
	}
	return out, nil
}
