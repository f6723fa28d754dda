package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // pure Go sqlite driver

	"github.com/prasenjit/go-mockserver/internal/models"
)

// Dialect selects the SQL flavour of a SQLStorage
type Dialect string

// Supported dialects; the value is the database/sql driver name.
const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS mocks (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		data TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mocks_method_path ON mocks (method, path)`,
	`CREATE TABLE IF NOT EXISTS request_history (
		id TEXT PRIMARY KEY,
		ts BIGINT NOT NULL,
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		matched INTEGER NOT NULL,
		mock_id TEXT,
		duration_ms DOUBLE PRECISION,
		data TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_request_history_ts ON request_history (ts)`,
}

// SQLStorage implements Storage on PostgreSQL or SQLite.
// Each mock is stored as its JSON document plus indexed method/path columns.
type SQLStorage struct {
	db       *sql.DB
	dialect  Dialect
	location string
}

// OpenSQL connects to the database and creates the schema
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLStorage, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn is required", dialect)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// A single connection keeps :memory: databases shared and avoids
		// SQLITE_BUSY on concurrent writes.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
	}

	s, err := NewSQLStorage(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.location = redactDSN(dsn)
	return s, nil
}

// NewSQLStorage wraps an open database and creates the schema
func NewSQLStorage(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStorage, error) {
	s := &SQLStorage{db: db, dialect: dialect}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return s, nil
}

// rebind rewrites ? placeholders into $n for postgres
func (s *SQLStorage) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LoadMocks returns the stored mocks in registration order
func (s *SQLStorage) LoadMocks(ctx context.Context) ([]models.Mock, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM mocks ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query mocks: %w", err)
	}
	defer rows.Close()

	mocks := []models.Mock{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan mock: %w", err)
		}
		var m models.Mock
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return nil, fmt.Errorf("failed to decode mock: %w", err)
		}
		mocks = append(mocks, m)
	}
	return mocks, rows.Err()
}

// SaveMocks replaces the stored collection in one transaction
func (s *SQLStorage) SaveMocks(ctx context.Context, mocks []models.Mock) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM mocks"); err != nil {
		return fmt.Errorf("failed to clear mocks: %w", err)
	}

	insert := s.rebind("INSERT INTO mocks (id, position, method, path, data, updated_at) VALUES (?, ?, ?, ?, ?, ?)")
	for i := range mocks {
		m := &mocks[i]
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode mock %s: %w", m.ID, err)
		}
		if _, err := tx.ExecContext(ctx, insert, m.ID, i, m.Method, m.Path, string(data), m.UpdatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("failed to insert mock %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// AppendRequest inserts one request record
func (s *SQLStorage) AppendRequest(ctx context.Context, rec *models.RequestRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode request record: %w", err)
	}

	matched := 0
	if rec.Matched {
		matched = 1
	}

	query := s.rebind(`INSERT INTO request_history
		(id, ts, method, path, status_code, matched, mock_id, duration_ms, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Timestamp.UnixMilli(), rec.Method, rec.Path, rec.StatusCode,
		matched, rec.MockID, rec.DurationMs, string(data))
	if err != nil {
		return fmt.Errorf("failed to insert request record: %w", err)
	}
	return nil
}

// RecentRequests returns up to limit persisted records, newest first
func (s *SQLStorage) RecentRequests(ctx context.Context, limit int) ([]models.RequestRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT data FROM request_history ORDER BY ts DESC LIMIT ?"), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query request history: %w", err)
	}
	defer rows.Close()

	var records []models.RequestRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec models.RequestRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PurgeRequests deletes records older than before
func (s *SQLStorage) PurgeRequests(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM request_history WHERE ts < ?"), before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge request history: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLStorage) Info() Info {
	return Info{Type: string(s.dialect), Location: s.location, Initialized: true}
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// redactDSN hides the password of a URL-style DSN
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return dsn[:scheme+3] + creds[:colon] + ":***" + dsn[at:]
	}
	return dsn
}
