package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    data TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(collection, created_at);
`

	postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    data JSONB NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(collection, created_at);
`

	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// SQLStore keeps every collection in one documents table with the fields
// serialized as JSON. It runs on sqlite (modernc, pure Go) or postgres.
type SQLStore struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
	newID   func() string
}

// OpenSQL opens the database and creates the documents table if needed.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// A single connection serializes writers and keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach %s: %w", driver, err)
	}

	s := &SQLStore{
		db:      db,
		dialect: driver,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) createSchema(ctx context.Context) error {
	schema := sqliteSchema
	if s.dialect == DriverPostgres {
		schema = postgresSchema
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// q rewrites ? placeholders into $n for postgres.
func (s *SQLStore) q(query string) string {
	if s.dialect != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ? ORDER BY created_at, id`),
		collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (s *SQLStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, s.q(
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`),
		collection, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *SQLStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", collection, err)
	}
	id := s.newID()
	now := s.now().Format(timeLayout)
	_, err = s.db.ExecContext(ctx, s.q(
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		collection, id, string(data), now, now)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", collection, err)
	}
	return id, nil
}

func (s *SQLStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, s.q(
		`SELECT data FROM documents WHERE collection = ? AND id = ?`),
		collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	merged := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &merged); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	for k, v := range fields {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	_, err = tx.ExecContext(ctx, s.q(
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`),
		string(data), s.now().Format(timeLayout), collection, id)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return tx.Commit()
}

func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, s.q(
		`DELETE FROM documents WHERE collection = ? AND id = ?`), collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var (
		doc              Document
		data             []byte
		created, updated string
	)
	if err := row.Scan(&doc.ID, &data, &created, &updated); err != nil {
		return nil, err
	}
	doc.Fields = map[string]any{}
	if err := json.Unmarshal(data, &doc.Fields); err != nil {
		return nil, fmt.Errorf("decode %s: %w", doc.ID, err)
	}
	doc.CreatedAt = parseTime(created)
	doc.UpdatedAt = parseTime(updated)
	return &doc, nil
}

func parseTime(s string) *time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
