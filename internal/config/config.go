// Package config loads the pipeline's environment configuration
// (spec §6.1), in the teacher's env-var + .env idiom (market/api_client.go's
// os.Getenv fallback chain, stadam23-Eve-flipper's .env loading ahead
// of flag parsing).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// MissingEnvError lists every absent required environment variable at
// once, so an operator fixes the whole set in a single pass instead of
// iterating one failure at a time (spec §7's "configuration absence is
// fatal at startup", extended per SPEC_FULL.md §7).
type MissingEnvError struct {
	Vars []string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Vars, ", "))
}

// Broker holds the broker/cache connection config.
type Broker struct {
	Endpoint string
}

// LoadBroker reads REDIS_ENDPOINT, required by every one of the four
// binaries.
func LoadBroker() (Broker, error) {
	endpoint := os.Getenv("REDIS_ENDPOINT")
	if endpoint == "" {
		return Broker{}, &MissingEnvError{Vars: []string{"REDIS_ENDPOINT"}}
	}
	return Broker{Endpoint: endpoint}, nil
}

// DurableStore holds the durable-store credentials, required only by
// the reaper (spec §6.1).
type DurableStore struct {
	Username string
	Password string
	Endpoint string
	Name     string
	Table    string
}

// LoadDurableStore reads DB_USERNAME, DB_PASSWORD, DB_ENDPOINT,
// DB_NAME, DB_TABLE. Absence of any of them is fatal at reaper
// startup, before any work is attempted.
func LoadDurableStore() (DurableStore, error) {
	vals := map[string]string{
		"DB_USERNAME": os.Getenv("DB_USERNAME"),
		"DB_PASSWORD": os.Getenv("DB_PASSWORD"),
		"DB_ENDPOINT": os.Getenv("DB_ENDPOINT"),
		"DB_NAME":     os.Getenv("DB_NAME"),
		"DB_TABLE":    os.Getenv("DB_TABLE"),
	}

	var missing []string
	for k, v := range vals {
		if v == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return DurableStore{}, &MissingEnvError{Vars: missing}
	}

	return DurableStore{
		Username: vals["DB_USERNAME"],
		Password: vals["DB_PASSWORD"],
		Endpoint: vals["DB_ENDPOINT"],
		Name:     vals["DB_NAME"],
		Table:    vals["DB_TABLE"],
	}, nil
}

// DSN builds a go-sql-driver/mysql compatible data source name.
func (d DurableStore) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", d.Username, d.Password, d.Endpoint, d.Name)
}

// MetricsAddr returns the address the /metrics endpoint should listen
// on (spec §6.6), defaulting to :9090.
func MetricsAddr() string {
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		return v
	}
	return ":9090"
}

// Prepare holds the config unique to cmd/prepare: the warehouse DSN
// and the single ticker this run prepares data for (spec §6.1a — the
// cache layout's date-only keys mean one broker namespace holds one
// ticker at a time).
type Prepare struct {
	WarehouseDSN        string
	Ticker              string
	OpeningRangeSeconds int
	DateStart           time.Time
	DateEnd             time.Time
}

// LoadPrepare reads WAREHOUSE_DSN, TICKER, DATE_START, DATE_END (both
// YYYY-MM-DD, UTC, inclusive), and the optional OPENING_RANGE_SECONDS
// override.
func LoadPrepare() (Prepare, error) {
	dsn := os.Getenv("WAREHOUSE_DSN")
	ticker := os.Getenv("TICKER")
	dateStartRaw := os.Getenv("DATE_START")
	dateEndRaw := os.Getenv("DATE_END")

	var missing []string
	if dsn == "" {
		missing = append(missing, "WAREHOUSE_DSN")
	}
	if ticker == "" {
		missing = append(missing, "TICKER")
	}
	if dateStartRaw == "" {
		missing = append(missing, "DATE_START")
	}
	if dateEndRaw == "" {
		missing = append(missing, "DATE_END")
	}
	if len(missing) > 0 {
		return Prepare{}, &MissingEnvError{Vars: missing}
	}

	dateStart, err := time.Parse("2006-01-02", dateStartRaw)
	if err != nil {
		return Prepare{}, fmt.Errorf("parse DATE_START: %w", err)
	}
	dateEnd, err := time.Parse("2006-01-02", dateEndRaw)
	if err != nil {
		return Prepare{}, fmt.Errorf("parse DATE_END: %w", err)
	}
	if dateEnd.Before(dateStart) {
		return Prepare{}, fmt.Errorf("DATE_END %s precedes DATE_START %s", dateEndRaw, dateStartRaw)
	}

	seconds := 30
	if v := os.Getenv("OPENING_RANGE_SECONDS"); v != "" {
		parsed, err := parsePositiveInt(v)
		if err != nil {
			return Prepare{}, fmt.Errorf("parse OPENING_RANGE_SECONDS: %w", err)
		}
		seconds = parsed
	}

	return Prepare{
		WarehouseDSN:        dsn,
		Ticker:              ticker,
		OpeningRangeSeconds: seconds,
		DateStart:           dateStart,
		DateEnd:             dateEnd,
	}, nil
}

// Day is one calendar date expressed both as a label and as a
// UTC-midnight epoch second.
type Day struct {
	Label string
	Start int64
}

// Days enumerates every calendar date in [DateStart, DateEnd], the
// unit cmd/prepare iterates over.
func (p Prepare) Days() []Day {
	var out []Day
	for d := p.DateStart; !d.After(p.DateEnd); d = d.AddDate(0, 0, 1) {
		out = append(out, Day{Label: d.Format("2006-01-02"), Start: d.Unix()})
	}
	return out
}

func parsePositiveInt(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("value %q must be positive", s)
	}
	return v, nil
}
