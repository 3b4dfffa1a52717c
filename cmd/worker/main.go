// Command worker is the long-running pool process: it pulls staged
// task messages off the broker, runs the breakout state machine over
// every staged date, and writes each sweep point's result back into
// the broker's results keyspace for the reaper to drain (spec §4.5).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"openingrange/internal/broker"
	"openingrange/internal/config"
	"openingrange/internal/telemetry/log"
	"openingrange/internal/telemetry/metrics"
	"openingrange/internal/worker"
)

func main() {
	_ = godotenv.Load()
	logger := log.New("worker")

	brokerCfg, err := config.LoadBroker()
	if err != nil {
		logger.Fatal().Err(err).Msg("load broker config")
	}

	queueClient := broker.NewClient(brokerCfg.Endpoint, broker.DBTaskQueue)
	defer queueClient.Close()
	rangesClient := broker.NewClient(brokerCfg.Endpoint, broker.DBOpeningRanges)
	defer rangesClient.Close()
	seriesClient := broker.NewClient(brokerCfg.Endpoint, broker.DBCompressedSeries)
	defer seriesClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ranges, err := worker.LoadOpeningRanges(ctx, rangesClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("load staged opening ranges")
	}
	series, err := worker.LoadCompressedSeries(ctx, seriesClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("load staged compressed series")
	}
	logger.Info().Int("dates_with_ranges", len(ranges)).Int("dates_with_series", len(series)).Msg("staged data loaded")

	go serveMetrics(logger)

	cfg := worker.Config{
		QueueName:   "worker_main",
		Concurrency: runtime.NumCPU(),
		PollTimeout: 5 * time.Second,
	}

	worker.Run(ctx, cfg, queueClient, queueClient, ranges, series, logger)
	logger.Info().Msg("worker pool shut down")
}

func serveMetrics(logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	addr := config.MetricsAddr()
	logger.Info().Str("addr", addr).Msg("serving /metrics")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}
