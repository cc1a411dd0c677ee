package audit

import (
	"fmt"
	"strings"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect holds what differs between the supported SQL engines
type dialect struct {
	driver string
	// placeholder returns the n-th (1-based) bind parameter
	placeholder func(n int) string
	pragmas     []string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite:
		return dialect{
			driver:      DriverSQLite,
			placeholder: func(int) string { return "?" },
			pragmas: []string{
				"PRAGMA journal_mode=WAL",
				"PRAGMA busy_timeout=5000",
			},
		}, nil
	case DriverPostgres:
		return dialect{
			driver:      DriverPostgres,
			placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		}, nil
	default:
		return dialect{}, fmt.Errorf("%w: %q", ErrInvalidDriver, driver)
	}
}

// bind replaces each '?' of query with the dialect's placeholder
func (d dialect) bind(query string) string {
	if d.driver == DriverSQLite {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS audit_events (
		seq         BIGINT PRIMARY KEY,
		recorded_at BIGINT NOT NULL,
		name        TEXT   NOT NULL,
		payload     TEXT   NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS audit_events_name ON audit_events (name, seq)`,
}
