// Package durablestore wraps gorm.io/gorm with the MySQL driver,
// grounded on ChoSanghyuk-blackholedex's internal/db/transaction_recorder.go
// (a GORM-backed MySQLRecorder with AutoMigrate bootstrap and a
// Create-based write path), adapted here to the reaper's idempotent
// batch-insert requirement via clause.Insert{Modifier: "IGNORE"}
// (INSERT IGNORE) against the unique trade_id key (spec §4.6, §6.4).
package durablestore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ResultRow is the durable-store row shape fixed by spec §6.4.
type ResultRow struct {
	TradeID               string  `gorm:"column:trade_id;primaryKey;size:64"`
	StopsTriggered        int     `gorm:"column:stops_triggered"`
	TradesTriggered       int     `gorm:"column:trades_triggered"`
	NetProfit             float64 `gorm:"column:net_profit"`
	AverageHoldingPeriod  float64 `gorm:"column:average_holding_period"`
	TradeStats            string  `gorm:"column:trade_stats;type:json"`
}

// taggedResultRow pairs a row with the operator-configured DB_TABLE
// name (spec §6.1). GORM caches a type's TableName result from a zero
// value, so InsertIgnore names the table explicitly with Table.
type taggedResultRow struct {
	ResultRow
	table string
}

func (t taggedResultRow) TableName() string { return t.table }

// Store wraps a *gorm.DB bound to one results table.
type Store struct {
	db    *gorm.DB
	table string
}

// Open dials MySQL via dsn and bootstraps the results table with
// AutoMigrate, matching transaction_recorder.go's
// gorm.Open(mysql.Open(dsn), ...) + AutoMigrate pattern.
func Open(dsn, table string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open durable store: %w", err)
	}

	s := &Store{db: db, table: table}

	if err := db.Table(table).AutoMigrate(&ResultRow{}); err != nil {
		return nil, fmt.Errorf("migrate results table: %w", err)
	}

	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InsertIgnore batch-inserts rows using insert-ignore semantics on the
// unique trade_id key (spec §4.6 step 5 / §6.4), in groups of up to
// batchSize rows (spec's 5,000-row batches).
func (s *Store) InsertIgnore(rows []ResultRow, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = len(rows)
	}

	tagged := make([]taggedResultRow, len(rows))
	for i, r := range rows {
		tagged[i] = taggedResultRow{ResultRow: r, table: s.table}
	}

	return s.db.Table(s.table).Clauses(clause.Insert{Modifier: "IGNORE"}).
		CreateInBatches(tagged, batchSize).Error
}
