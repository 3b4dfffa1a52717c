// Command dispatch enumerates the strategy parameter grid and pushes
// one Celery-compatible task message per sweep point onto the broker
// (spec §4.4).
package main

import (
	"context"
	"flag"

	"github.com/joho/godotenv"

	"openingrange/internal/broker"
	"openingrange/internal/config"
	"openingrange/internal/dispatch"
	"openingrange/internal/telemetry/log"
)

func main() {
	_ = godotenv.Load()
	logger := log.New("dispatch")

	gridPath := flag.String("grid", "", "optional grid.yaml override path; absent falls back to the reference grid")
	flag.Parse()

	brokerCfg, err := config.LoadBroker()
	if err != nil {
		logger.Fatal().Err(err).Msg("load broker config")
	}

	grid := dispatch.ReferenceGrid
	if *gridPath != "" {
		loaded, err := dispatch.LoadGrid(*gridPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *gridPath).Msg("load grid override")
		}
		grid = loaded
	}

	total := dispatch.Count(grid)
	logger.Info().Int("sweep_points", total).Msg("enumerating parameter grid")

	client := broker.NewClient(brokerCfg.Endpoint, broker.DBTaskQueue)
	defer client.Close()

	sent, err := dispatch.Run(context.Background(), client, grid)
	if err != nil {
		logger.Fatal().Err(err).Int("sent", sent).Msg("dispatch failed partway through the grid")
	}

	logger.Info().Int("sent", sent).Msg("dispatch complete")
}
