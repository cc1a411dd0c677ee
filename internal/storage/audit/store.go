// Package audit keeps the audit trail of published market notifications in
// a SQL database, with the most recent records also held in memory.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/LeJamon/goOfferd/internal/core/event"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	DefaultTailSize = 1024
	DefaultTimeout  = 10 * time.Second
	// MaxQueryLimit bounds the rows returned by one Query
	MaxQueryLimit = 1000
)

// Config contains audit database settings
type Config struct {
	Driver   string
	DSN      string
	TailSize int
	Timeout  time.Duration
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if _, err := dialectFor(c.Driver); err != nil {
		return err
	}
	if c.DSN == "" {
		return ErrMissingDSN
	}
	return nil
}

// Filter selects records in Query
type Filter struct {
	// Name restricts the result to one notification type when set
	Name event.Name
	// AfterSeq returns only records with a greater sequence number
	AfterSeq uint64
	Limit    int
}

// Store is the audit trail. It implements event.Sink.
type Store struct {
	mu      sync.Mutex
	db      *sql.DB
	dialect dialect
	timeout time.Duration
	tail    *lru.Cache[uint64, event.Record]
	logger  *zap.Logger
}

// Open connects to the database and creates the schema if needed
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigurationError("open", "invalid configuration", err)
	}
	d, _ := dialectFor(cfg.Driver)
	if cfg.TailSize <= 0 {
		cfg.TailSize = DefaultTailSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tail, err := lru.New[uint64, event.Record](cfg.TailSize)
	if err != nil {
		return nil, NewConfigurationError("open", "invalid tail size", err)
	}

	db, err := sql.Open(d.driver, cfg.DSN)
	if err != nil {
		return nil, NewConnectionError("open", "failed to open database connection", err)
	}
	if d.driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, dialect: d, timeout: cfg.Timeout, tail: tail, logger: logger}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, NewConnectionError("open", "failed to ping database", err)
	}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.warmTail(ctx, cfg.TailSize); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.pragmas {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return NewSchemaError("init_schema", "failed to apply pragma", err)
		}
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return NewSchemaError("init_schema", "failed to create schema", err)
		}
	}
	return nil
}

// warmTail loads the newest records into the in-memory tail
func (s *Store) warmTail(ctx context.Context, n int) error {
	rows, err := s.db.QueryContext(ctx, s.dialect.bind(
		`SELECT seq, recorded_at, name, payload FROM audit_events ORDER BY seq DESC LIMIT ?`), n)
	if err != nil {
		return NewQueryError("warm_tail", "failed to read recent events", err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return err
	}
	for i := len(recs) - 1; i >= 0; i-- {
		s.tail.Add(recs[i].Seq, recs[i])
	}
	return nil
}

// Insert stores one record
func (s *Store) Insert(ctx context.Context, rec event.Record) error {
	payload, err := json.Marshal(rec.Event)
	if err != nil {
		return NewDataError("insert", "failed to encode event", err)
	}

	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return ErrDatabaseClosed
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = db.ExecContext(ctx, s.dialect.bind(
		`INSERT INTO audit_events (seq, recorded_at, name, payload) VALUES (?, ?, ?, ?)`),
		int64(rec.Seq), rec.Time.UnixNano(), string(rec.Name), string(payload))
	if err != nil {
		return NewQueryError("insert", "failed to insert event", err)
	}
	s.tail.Add(rec.Seq, rec)
	return nil
}

// Consume stores rec. Failures are logged; the record stays in the tail.
func (s *Store) Consume(rec event.Record) {
	if err := s.Insert(context.Background(), rec); err != nil {
		s.tail.Add(rec.Seq, rec)
		s.logger.Error("failed to store audit record",
			zap.Uint64("seq", rec.Seq), zap.String("event", rec.Name.String()), zap.Error(err))
	}
}

// Recent returns up to limit of the newest records, newest first, without
// touching the database
func (s *Store) Recent(limit int) []event.Record {
	keys := s.tail.Keys()
	if limit <= 0 || limit > len(keys) {
		limit = len(keys)
	}
	out := make([]event.Record, 0, limit)
	for i := len(keys) - 1; i >= 0 && len(out) < limit; i-- {
		if rec, ok := s.tail.Peek(keys[i]); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Query returns stored records matching f in ascending sequence order
func (s *Store) Query(ctx context.Context, f Filter) ([]event.Record, error) {
	if f.Limit <= 0 || f.Limit > MaxQueryLimit {
		return nil, ErrInvalidLimit
	}

	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, ErrDatabaseClosed
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `SELECT seq, recorded_at, name, payload FROM audit_events WHERE seq > ?`
	args := []any{int64(f.AfterSeq)}
	if f.Name != "" {
		query += ` AND name = ?`
		args = append(args, string(f.Name))
	}
	query += ` ORDER BY seq ASC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := db.QueryContext(ctx, s.dialect.bind(query), args...)
	if err != nil {
		return nil, NewQueryError("query", "failed to query events", err)
	}
	return scanRecords(rows)
}

// LastSeq returns the highest stored sequence number, or 0
func (s *Store) LastSeq(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return 0, ErrDatabaseClosed
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var seq sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(seq) FROM audit_events`).Scan(&seq); err != nil {
		return 0, NewQueryError("last_seq", "failed to read last sequence", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

// Close closes the database connection
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return NewConnectionError("close", "failed to close database connection", err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]event.Record, error) {
	defer rows.Close()

	var out []event.Record
	for rows.Next() {
		var (
			seq, at       int64
			name, payload string
		)
		if err := rows.Scan(&seq, &at, &name, &payload); err != nil {
			return nil, NewQueryError("scan", "failed to scan event row", err)
		}
		ev, err := event.Decode(event.Name(name), []byte(payload))
		if err != nil {
			return nil, NewDataError("scan", "failed to decode stored event", err)
		}
		out = append(out, event.Record{
			Seq:   uint64(seq),
			Time:  time.Unix(0, at).UTC(),
			Name:  event.Name(name),
			Event: ev,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, NewQueryError("scan", "failed to iterate event rows", err)
	}
	return out, nil
}
