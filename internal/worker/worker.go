// Package worker implements the pool/runtime glue named in spec §4.5
// and §5: a single goroutine performs the blocking BRPop against the
// broker and feeds a fixed-size pool of goroutines over a channel,
// rather than every pool goroutine contending on BRPop directly.
package worker

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"openingrange/internal/backtest"
	"openingrange/internal/model"
	"openingrange/internal/queue"
	"openingrange/internal/telemetry/metrics"
)

// Fetcher is the subset of broker.Client the pool needs to pull task
// messages.
type Fetcher interface {
	BRPop(ctx context.Context, queueName string, timeout time.Duration) ([]byte, error)
}

// ResultWriter is the subset of broker.Client the pool needs to
// publish results.
type ResultWriter interface {
	Set(ctx context.Context, key string, value []byte) error
}

// Config bounds one pool's scheduling behavior (spec §5's "a pool of
// parallel workers pulls tasks from a shared queue").
type Config struct {
	QueueName   string
	Concurrency int
	PollTimeout time.Duration
}

// resultEnvelope mirrors the existing worker runtime's
// `<runtime>-task-meta-<uuid>` result shape (spec §6.3).
type resultEnvelope struct {
	Status string               `json:"status"`
	TaskID string               `json:"task_id"`
	Result model.BacktestResult `json:"result"`
}

type failureEnvelope struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
	Result struct {
		Error string `json:"error"`
	} `json:"result"`
}

// Run drives the pool until ctx is canceled: one fetch goroutine
// performs the blocking BRPop and feeds `jobs`; Concurrency goroutines
// drain `jobs` and process tasks independently (spec §5 — "result
// writes are independent across work items").
func Run(ctx context.Context, cfg Config, fetcher Fetcher, writer ResultWriter, ranges map[string]model.OpeningRange, series map[string]model.CompressedSeries, logger zerolog.Logger) {
	jobs := make(chan []byte, cfg.Concurrency)

	go fetchLoop(ctx, cfg, fetcher, jobs, logger)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for raw := range jobs {
				ProcessTask(ctx, logger, writer, raw, ranges, series)
			}
		}()
	}
	wg.Wait()
}

func fetchLoop(ctx context.Context, cfg Config, fetcher Fetcher, jobs chan<- []byte, logger zerolog.Logger) {
	defer close(jobs)
	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := fetcher.BRPop(ctx, cfg.QueueName, cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("brpop failed")
			continue
		}
		if raw == nil {
			continue
		}

		select {
		case jobs <- raw:
		case <-ctx.Done():
			return
		}
	}
}

// ProcessTask decodes one broker payload, runs the backtest, and
// writes the result (or failure) back to the broker, matching spec
// §4.5's decode -> run -> publish sequence.
func ProcessTask(ctx context.Context, logger zerolog.Logger, writer ResultWriter, raw []byte, ranges map[string]model.OpeningRange, series map[string]model.CompressedSeries) {
	timer := prometheus.NewTimer(metrics.WorkerTaskDurationSeconds)
	defer timer.ObserveDuration()

	msg, err := queue.Decode(raw)
	if err != nil {
		logger.Error().Err(err).Msg("decode task message")
		metrics.WorkerTasksTotal.WithLabelValues("fatal_json").Inc()
		return
	}

	var params model.StrategyParams
	if err := queue.DecodeKwargs(msg, &params); err != nil {
		logger.Error().Err(err).Str("task_id", msg.Headers.ID).Msg("decode task kwargs")
		writeFailure(ctx, writer, msg.Headers.ID, err)
		metrics.WorkerTasksTotal.WithLabelValues("fatal_json").Inc()
		return
	}

	byDay, err := backtest.RunDates(ranges, series, params)
	if err != nil {
		logger.Error().Err(err).Str("task_id", msg.Headers.ID).Msg("run backtest")
		writeFailure(ctx, writer, msg.Headers.ID, err)
		metrics.WorkerTasksTotal.WithLabelValues("fatal_missing_data").Inc()
		return
	}

	result := Aggregate(byDay, params)
	if err := writeSuccess(ctx, writer, msg.Headers.ID, result); err != nil {
		logger.Error().Err(err).Str("task_id", msg.Headers.ID).Msg("write result")
		metrics.WorkerTasksTotal.WithLabelValues("fatal_json").Inc()
		return
	}

	metrics.WorkerTasksTotal.WithLabelValues("success").Inc()
}

// Aggregate folds the per-day results of one sweep point into the
// BacktestResult the results keyspace stores, matching
// original_source/backtest/engine.py:263-284 exactly: `snp`/`ahp`/
// win-or-lose are pooled one entry per *day*, not per trade, and
// `backtest_profit` is rounded to 2 decimal places. Empty aggregates
// (no staged days) yield zeroed fields rather than an error (spec
// §7).
func Aggregate(byDay map[string]*model.DayResult, params model.StrategyParams) model.BacktestResult {
	var (
		stopsTotal, tradesTotal, winDays int
		profitTotal, holdingSum          float64
	)
	numDays := len(byDay)

	for _, day := range byDay {
		stopsTotal += day.StopsTriggered
		tradesTotal += day.TradesTriggered
		profitTotal += day.NetProfit
		holdingSum += day.AverageHoldingPeriod
		if day.NetProfit > 0 {
			winDays++
		}
	}

	var avgHolding float64
	var winRate int
	if numDays > 0 {
		avgHolding = holdingSum / float64(numDays)
		winRate = int(math.Round(100 * float64(winDays) / float64(numDays)))
	}

	profit := math.Round(profitTotal*100) / 100

	return model.BacktestResult{
		BacktestID:           shortID(),
		Params:               params,
		ByDay:                byDay,
		BacktestProfit:       profit,
		AverageHoldingPeriod: avgHolding,
		WinRatePercent:       winRate,
		StopDistance:         params.StopDistance,
		StopCountLimit:       params.StopCountLimit,
		StopCooloffPeriod:    params.StopCooloffPeriod,
		LimitDistance:        params.LimitDistance,
		StopsTriggered:       stopsTotal,
		TradesTriggered:      tradesTotal,
		NetProfit:            profit,
	}
}

// shortID mirrors the original engine's short, human-scannable
// backtest_id (distinct from the Celery task_id the reaper keys on).
func shortID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:5]
}

func writeSuccess(ctx context.Context, writer ResultWriter, taskID string, result model.BacktestResult) error {
	envelope := resultEnvelope{Status: "SUCCESS", TaskID: taskID, Result: result}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return writer.Set(ctx, "celery-task-meta-"+taskID, payload)
}

func writeFailure(ctx context.Context, writer ResultWriter, taskID string, cause error) {
	envelope := failureEnvelope{Status: "FAILURE", TaskID: taskID}
	envelope.Result.Error = cause.Error()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	_ = writer.Set(ctx, "celery-task-meta-"+taskID, payload)
}
