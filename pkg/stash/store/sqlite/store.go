// Package sqlite is a single-file catalog store for small deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tendant/stash/pkg/stash"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

const timeLayout = time.RFC3339Nano

const columns = `id, owner_id, title, content, type, file_url, file_name, file_size,
	mime_type, tags, metadata, created_at, updated_at`

// Store implements stash.Store on top of SQLite
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every new connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies schema migrations based on user_version.
func (s *Store) Migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS items (
		  id         INTEGER PRIMARY KEY AUTOINCREMENT,
		  owner_id   TEXT    NOT NULL,
		  title      TEXT    NOT NULL,
		  content    TEXT    NOT NULL DEFAULT '',
		  type       TEXT    NOT NULL CHECK (type IN ('file', 'note', 'contact', 'link')),
		  file_url   TEXT,
		  file_name  TEXT,
		  file_size  INTEGER,
		  mime_type  TEXT,
		  tags       TEXT    NOT NULL DEFAULT '[]',
		  metadata   TEXT,
		  created_at TEXT    NOT NULL,
		  updated_at TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS items_owner_id_idx ON items (owner_id, id);
		PRAGMA user_version = 1;`
		if _, err := s.db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to apply migration 1: %w", err)
		}
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, rec *stash.Record) error {
	tags, err := encodeTags(rec.Tags)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO items (
			owner_id, title, content, type, file_url, file_name, file_size,
			mime_type, tags, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OwnerID, rec.Title, rec.Content, string(rec.Type), rec.FileURL, rec.FileName,
		rec.FileSize, rec.MimeType, tags, rec.Metadata,
		rec.CreatedAt.UTC().Format(timeLayout), rec.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	rec.ID = id
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (*stash.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM items WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stash.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return rec, nil
}

func (s *Store) Update(ctx context.Context, rec *stash.Record) error {
	tags, err := encodeTags(rec.Tags)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET
			title = ?, content = ?, file_url = ?, file_name = ?, file_size = ?,
			mime_type = ?, tags = ?, metadata = ?, updated_at = ?
		WHERE id = ?`,
		rec.Title, rec.Content, rec.FileURL, rec.FileName, rec.FileSize,
		rec.MimeType, tags, rec.Metadata, rec.UpdatedAt.UTC().Format(timeLayout), rec.ID)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if n == 0 {
		return stash.ErrItemNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) (*stash.Record, error) {
	row := s.db.QueryRowContext(ctx, `DELETE FROM items WHERE id = ? RETURNING `+columns, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stash.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete item: %w", err)
	}
	return rec, nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]*stash.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM items WHERE owner_id = ? ORDER BY id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	records := make([]*stash.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*stash.Record, error) {
	var (
		rec                  stash.Record
		itemType             string
		fileURL, fileName    sql.NullString
		mimeType, meta       sql.NullString
		fileSize             sql.NullInt64
		tags                 string
		createdAt, updatedAt string
	)
	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Title, &rec.Content, &itemType,
		&fileURL, &fileName, &fileSize, &mimeType, &tags, &meta, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	rec.Type = stash.ItemType(itemType)
	rec.FileURL = nullString(fileURL)
	rec.FileName = nullString(fileName)
	rec.MimeType = nullString(mimeType)
	rec.Metadata = nullString(meta)
	if fileSize.Valid {
		rec.FileSize = &fileSize.Int64
	}

	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil || rec.Tags == nil {
		rec.Tags = []string{}
	}
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &rec, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}
