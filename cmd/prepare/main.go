// Command prepare builds opening ranges and compressed price series
// for one ticker over a date range, pulling from the warehouse and
// staging both products into the broker (spec §4.1–§4.3).
package main

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"

	"openingrange/internal/broker"
	"openingrange/internal/compress"
	"openingrange/internal/config"
	"openingrange/internal/model"
	"openingrange/internal/openingrange"
	"openingrange/internal/stage"
	"openingrange/internal/telemetry/log"
	"openingrange/internal/warehouse"
)

func main() {
	_ = godotenv.Load()
	logger := log.New("prepare")

	brokerCfg, err := config.LoadBroker()
	if err != nil {
		logger.Fatal().Err(err).Msg("load broker config")
	}
	prepCfg, err := config.LoadPrepare()
	if err != nil {
		logger.Fatal().Err(err).Msg("load prepare config")
	}

	db, err := sql.Open("mysql", prepCfg.WarehouseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("open warehouse connection")
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	ctx := context.Background()
	wh := warehouse.NewWarehouse(db)

	days := prepCfg.Days()
	if len(days) == 0 {
		logger.Fatal().Msg("DATE_START..DATE_END spans no calendar days")
	}

	window := time.Duration(prepCfg.OpeningRangeSeconds) * time.Second
	dayStarts := make([]int64, len(days))
	for i, d := range days {
		dayStarts[i] = d.Start
	}

	rangeRows, err := wh.OpeningRangeRows(ctx, prepCfg.Ticker, dayStarts, window)
	if err != nil {
		logger.Fatal().Err(err).Msg("query opening range rows")
	}

	builder := openingrange.NewBuilder(window)
	for _, day := range days {
		for _, row := range rangeRows {
			if row.TimestampUTC >= day.Start && row.TimestampUTC < day.Start+86400 {
				builder.Add(prepCfg.Ticker, day.Label, row.TimestampUTC, row.Underlying)
			}
		}
	}
	ranges := builder.Result()[prepCfg.Ticker]

	ticksByDate := make(map[string][]model.Tick, len(days))
	for _, day := range days {
		rows, err := wh.IntradayRows(ctx, prepCfg.Ticker, day.Start, 24*time.Hour)
		if err != nil {
			logger.Fatal().Err(err).Str("date", day.Label).Msg("query intraday rows")
		}
		if len(rows) > 0 {
			ticksByDate[day.Label] = rows
		}
	}
	series := compress.SeriesByDate(ticksByDate)

	rangeBroker := broker.NewClient(brokerCfg.Endpoint, broker.DBOpeningRanges)
	defer rangeBroker.Close()
	seriesBroker := broker.NewClient(brokerCfg.Endpoint, broker.DBCompressedSeries)
	defer seriesBroker.Close()

	if err := stage.OpeningRanges(ctx, rangeBroker, ranges); err != nil {
		logger.Fatal().Err(err).Msg("stage opening ranges")
	}
	if err := stage.CompressedSeries(ctx, seriesBroker, series); err != nil {
		logger.Fatal().Err(err).Msg("stage compressed series")
	}

	logger.Info().
		Str("ticker", prepCfg.Ticker).
		Int("days", len(days)).
		Int("opening_ranges", len(ranges)).
		Int("series", len(series)).
		Msg("prepare complete")
}
