package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/stash/pkg/stash"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Schema creates the items table. Migrate applies it idempotently.
const Schema = `
CREATE TABLE IF NOT EXISTS items (
	id          BIGSERIAL PRIMARY KEY,
	owner_id    TEXT        NOT NULL,
	title       TEXT        NOT NULL,
	content     TEXT        NOT NULL DEFAULT '',
	type        TEXT        NOT NULL CHECK (type IN ('file', 'note', 'contact', 'link')),
	file_url    TEXT,
	file_name   TEXT,
	file_size   BIGINT,
	mime_type   TEXT,
	tags        TEXT[]      NOT NULL DEFAULT '{}',
	metadata    TEXT,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS items_owner_id_idx ON items (owner_id, id);`

const columns = `id, owner_id, title, content, type, file_url, file_name, file_size,
	mime_type, tags, metadata, created_at, updated_at`

// Store implements stash.Store using PostgreSQL
type Store struct {
	db DBTX
}

// New creates a new PostgreSQL store
func New(db DBTX) *Store {
	return &Store{db: db}
}

// NewWithPool creates a new PostgreSQL store with connection pool
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// Migrate creates the schema if it does not exist yet
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return s.handlePostgresError("migrate", err)
	}
	return nil
}

// Error handling helper
func (s *Store) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return stash.ErrItemNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23514": // check_violation
			return fmt.Errorf("invalid item type: %s", pgErr.Message)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (s *Store) Insert(ctx context.Context, rec *stash.Record) error {
	query := `
		INSERT INTO items (
			owner_id, title, content, type, file_url, file_name, file_size,
			mime_type, tags, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	err := s.db.QueryRow(ctx, query,
		rec.OwnerID, rec.Title, rec.Content, string(rec.Type), rec.FileURL, rec.FileName,
		rec.FileSize, rec.MimeType, tagsOrEmpty(rec.Tags), rec.Metadata, rec.CreatedAt, rec.UpdatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return s.handlePostgresError("insert item", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (*stash.Record, error) {
	query := `SELECT ` + columns + ` FROM items WHERE id = $1`

	rec, err := scanRecord(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, s.handlePostgresError("get item", err)
	}
	return rec, nil
}

func (s *Store) Update(ctx context.Context, rec *stash.Record) error {
	query := `
		UPDATE items SET
			title = $2, content = $3, file_url = $4, file_name = $5, file_size = $6,
			mime_type = $7, tags = $8, metadata = $9, updated_at = $10
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query,
		rec.ID, rec.Title, rec.Content, rec.FileURL, rec.FileName, rec.FileSize,
		rec.MimeType, tagsOrEmpty(rec.Tags), rec.Metadata, rec.UpdatedAt)
	if err != nil {
		return s.handlePostgresError("update item", err)
	}
	if tag.RowsAffected() == 0 {
		return stash.ErrItemNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) (*stash.Record, error) {
	query := `DELETE FROM items WHERE id = $1 RETURNING ` + columns

	rec, err := scanRecord(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, s.handlePostgresError("delete item", err)
	}
	return rec, nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]*stash.Record, error) {
	query := `SELECT ` + columns + ` FROM items WHERE owner_id = $1 ORDER BY id ASC`

	rows, err := s.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, s.handlePostgresError("list items", err)
	}
	defer rows.Close()

	records := make([]*stash.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, s.handlePostgresError("scan item", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.handlePostgresError("iterate item rows", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (*stash.Record, error) {
	var (
		rec      stash.Record
		itemType string
	)
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.Title, &rec.Content, &itemType,
		&rec.FileURL, &rec.FileName, &rec.FileSize, &rec.MimeType,
		&rec.Tags, &rec.Metadata, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Type = stash.ItemType(itemType)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	return &rec, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
