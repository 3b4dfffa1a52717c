// Command reap runs one reaper cycle: drain completed results out of
// the broker's results keyspace into the durable store (spec §4.6).
// It is intended to be invoked on a schedule by an external scheduler
// (cron, an ECS scheduled task); the scheduler itself is out of scope.
package main

import (
	"context"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"openingrange/internal/broker"
	"openingrange/internal/config"
	"openingrange/internal/durablestore"
	"openingrange/internal/reaper"
	"openingrange/internal/telemetry/log"
	"openingrange/internal/telemetry/metrics"
)

func main() {
	_ = godotenv.Load()
	logger := log.New("reaper")

	brokerCfg, err := config.LoadBroker()
	if err != nil {
		logger.Fatal().Err(err).Msg("load broker config")
	}
	storeCfg, err := config.LoadDurableStore()
	if err != nil {
		logger.Fatal().Err(err).Msg("load durable store config")
	}

	store, err := durablestore.Open(storeCfg.DSN(), storeCfg.Table)
	if err != nil {
		logger.Fatal().Err(err).Msg("open durable store")
	}
	defer store.Close()

	client := broker.NewClient(brokerCfg.Endpoint, broker.DBTaskQueue)
	defer client.Close()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
		addr := config.MetricsAddr()
		logger.Info().Str("addr", addr).Msg("serving /metrics")
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	report, err := reaper.Run(context.Background(), client, store)
	if err != nil {
		// Any SQL or broker error aborts the current batch and is
		// logged; the scanned cache entries are left in place for the
		// next scheduled run (spec §4.6's at-least-once
		// contract) rather than crashing the process.
		logger.Error().Err(err).Int("rows_lifecycled", report.RowsLifecycled).Msg("reaper cycle failed")
		return
	}

	logger.Info().Int("rows_lifecycled", report.RowsLifecycled).Msg("reaper cycle complete")
}
