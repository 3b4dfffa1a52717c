// Package model holds the data types shared across the opening-range
// breakout backtest pipeline: preparation, dispatch, worker, and reaper
// all exchange values of these shapes.
package model

import (
	"encoding/json"
	"strconv"
)

// Tick is a single second-resolution price observation produced by the
// warehouse.
type Tick struct {
	TimestampUTC int64   `json:"timestamp_utc"`
	Ticker       string  `json:"ticker"`
	Underlying   float64 `json:"underlying"`
}

// CompressedSeries is the sparse timestamp->price mapping produced by
// the compressor: no two adjacent entries share a price, and keys are
// strictly non-decreasing seconds. JSON keys are decimal strings of the
// integer timestamp, matching the wire layout in cache DB 2.
type CompressedSeries map[int64]float64

// OpeningRange summarizes the first D seconds of a trading day for one
// ticker.
type OpeningRange struct {
	OpenPrice    float64 `json:"open_price"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	CountTrades  int     `json:"count_trades"`
	TradingStart int64   `json:"trading_start"`
}

// StrategyParams is one sweep point: a combination of the four strategy
// axes. All fields are strictly positive.
type StrategyParams struct {
	StopDistance       float64 `json:"stop_distance"`
	StopCountLimit     int     `json:"stop_count_limit"`
	StopCooloffPeriod  int     `json:"stop_cooloff_period"`
	LimitDistance      float64 `json:"limit_distance"`
}

// Direction is the side of a breakout position.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Trade is immutable once closed.
type Trade struct {
	OpenPrice     float64   `json:"top"`
	OpenTS        int64     `json:"to"`
	Direction     Direction `json:"d"`
	ClosePrice    float64   `json:"tcp"`
	CloseTS       int64     `json:"tc"`
	Profit        float64   `json:"p"`
	HoldingPeriod int64     `json:"hp"`
}

// DayResult is the outcome of running the breakout state machine over a
// single trading day's compressed series.
type DayResult struct {
	Trades               []Trade
	StopsTriggered       int     `json:"st"`
	TradesTriggered      int     `json:"tt"`
	AverageHoldingPeriod float64 `json:"ahp"`
	NetProfit            float64 `json:"snp"`
}

// MarshalJSON mirrors engine.py's `trade_stats | additional_stats`
// merge (engine.py:262): each trade is emitted under its 1-indexed
// initiation-order key ("1", "2", ...) alongside the day's `st`/`tt`/
// `ahp`/`snp` aggregate keys, all at the same object level.
func (d DayResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.Trades)+4)

	for i, tr := range d.Trades {
		raw, err := json.Marshal(tr)
		if err != nil {
			return nil, err
		}
		out[strconv.Itoa(i+1)] = raw
	}

	for key, val := range map[string]interface{}{
		"st":  d.StopsTriggered,
		"tt":  d.TradesTriggered,
		"ahp": d.AverageHoldingPeriod,
		"snp": d.NetProfit,
	} {
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		out[key] = raw
	}

	return json.Marshal(out)
}

// BacktestResult is the per-sweep-point output a worker produces after
// running every staged date through the state machine.
type BacktestResult struct {
	BacktestID           string                 `json:"backtest_id"`
	Params               StrategyParams         `json:"-"`
	ByDay                map[string]*DayResult  `json:"trade_stats"`
	BacktestProfit       float64                `json:"backtest_profit"`
	AverageHoldingPeriod float64                `json:"average_holding_period"`
	WinRatePercent       int                    `json:"win_rate_percent"`
	StopDistance         float64                `json:"stop_distance"`
	StopCountLimit       int                    `json:"stop_count_limit"`
	StopCooloffPeriod    int                    `json:"stop_cooloff_period"`
	LimitDistance        float64                `json:"limit_distance"`

	// StopsTriggered and TradesTriggered are summed across every day in
	// ByDay. The reaper's durable-store transform (spec §4.6 step 4)
	// reads these aggregate fields, not the per-day ones nested under
	// ByDay.
	StopsTriggered  int `json:"stops_triggered"`
	TradesTriggered int `json:"trades_triggered"`

	// NetProfit aliases BacktestProfit so the reaper's
	// `'net_profit' in result` filter (spec §4.6 step 3 / §6.3) matches
	// on the same payload the worker already produces, without a
	// second round of post-processing.
	NetProfit float64 `json:"net_profit"`
}
