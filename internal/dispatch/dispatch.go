package dispatch

import (
	"context"
	"fmt"

	"openingrange/internal/queue"
	"openingrange/internal/telemetry/metrics"
)

// QueuePusher is the subset of broker.Client the dispatcher needs.
type QueuePusher interface {
	Pipeline(ctx context.Context, queueName string, payloads [][]byte) error
}

const (
	// QueueName and TaskName match the existing worker runtime's
	// routing key and task path exactly (spec §6.2's wire-format
	// coupling note).
	QueueName = "worker_main"
	TaskName  = "backtest.engine.backtest_redux"

	// pipelineBatchSize bounds each round trip to the broker, per
	// spec §4.4.
	pipelineBatchSize = 1000
)

// Run enumerates g and pushes one task message per sweep point onto
// pusher in batches of pipelineBatchSize.
func Run(ctx context.Context, pusher QueuePusher, g Grid) (int, error) {
	points := Enumerate(g)

	var batch [][]byte
	sent := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := pusher.Pipeline(ctx, QueueName, batch); err != nil {
			return fmt.Errorf("flush batch at offset %d: %w", sent, err)
		}
		sent += len(batch)
		metrics.DispatchTasksEnqueuedTotal.Add(float64(len(batch)))
		batch = batch[:0]
		return nil
	}

	for _, p := range points {
		msg, err := queue.BuildTask(QueueName, TaskName, map[string]interface{}{
			"stop_distance":       p.StopDistance,
			"stop_count_limit":    p.StopCountLimit,
			"stop_cooloff_period": p.StopCooloffPeriod,
			"limit_distance":      p.LimitDistance,
		})
		if err != nil {
			return sent, fmt.Errorf("build task message: %w", err)
		}

		encoded, err := queue.Encode(msg)
		if err != nil {
			return sent, fmt.Errorf("encode task message: %w", err)
		}

		batch = append(batch, encoded)
		if len(batch) >= pipelineBatchSize {
			if err := flush(); err != nil {
				return sent, err
			}
		}
	}

	if err := flush(); err != nil {
		return sent, err
	}

	return sent, nil
}
