package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrations embed.FS

// SQLStore keeps records in Postgres or SQLite. Queries are written with
// "?" placeholders and rebound for Postgres.
type SQLStore struct {
	db       *sql.DB
	postgres bool
}

// OpenPostgres connects through pgx and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	s := &SQLStore{db: db, postgres: true}
	if err := s.migrate(ctx, goose.DialectPostgres, "migrations/postgres"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens or creates a single-file database.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &SQLStore{db: db}
	if err := s.migrate(ctx, goose.DialectSQLite3, "migrations/sqlite"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context, dialect goose.Dialect, dir string) error {
	sub, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(dialect, s.db, sub)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) rebind(q string) string {
	if !s.postgres {
		return q
	}
	var sb strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// SQLite has no timestamp type; times are stored as RFC 3339 text there.
func (s *SQLStore) timeArg(t time.Time) any {
	if s.postgres {
		return t.UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (s *SQLStore) Save(ctx context.Context, r Record) error {
	if err := validate(r); err != nil {
		return err
	}
	body, err := json.Marshal(r.Breakdown)
	if err != nil {
		return fmt.Errorf("store: encode breakdown: %w", err)
	}
	q := s.rebind(`INSERT INTO scoring_records (id, document_id, total_score, breakdown, model, provider, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET total_score = excluded.total_score, breakdown = excluded.breakdown`)
	_, err = s.db.ExecContext(ctx, q, r.ID, r.DocumentID, r.Breakdown.TotalScore, string(body), r.Model, r.Provider, s.timeArg(r.CreatedAt))
	return err
}

const selectRecord = `SELECT id, document_id, breakdown, model, provider, created_at FROM scoring_records`

func (s *SQLStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectRecord+` WHERE id = ?`), id)
	r, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return r, err
}

func (s *SQLStore) ListByDocument(ctx context.Context, documentID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(selectRecord+` WHERE document_id = ? ORDER BY created_at`), documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		r, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) scan(sc scanner) (Record, error) {
	var (
		r       Record
		body    []byte
		created any
	)
	if err := sc.Scan(&r.ID, &r.DocumentID, &body, &r.Model, &r.Provider, &created); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal(body, &r.Breakdown); err != nil {
		return Record{}, fmt.Errorf("store: decode breakdown %s: %w", r.ID, err)
	}
	t, err := parseTime(created)
	if err != nil {
		return Record{}, fmt.Errorf("store: created_at %s: %w", r.ID, err)
	}
	r.CreatedAt = t
	return r, nil
}

func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected type %T", v)
	}
}
