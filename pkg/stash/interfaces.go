package stash

import (
	"context"
)

// Store persists catalog rows. Implementations live under store/ (memory,
// Postgres, SQLite) and are interchangeable; all filtering, search and
// ordering happens in Repository so the stores stay dumb.
type Store interface {
	// Insert assigns a fresh, monotonically increasing ID to rec and stores it
	Insert(ctx context.Context, rec *Record) error

	// Get returns the row or ErrItemNotFound
	Get(ctx context.Context, id int64) (*Record, error)

	// Update replaces the row with rec.ID or returns ErrItemNotFound
	Update(ctx context.Context, rec *Record) error

	// Delete removes the row and returns it, or returns ErrItemNotFound
	Delete(ctx context.Context, id int64) (*Record, error)

	// ListByOwner returns every row of ownerID in insertion (ID) order
	ListByOwner(ctx context.Context, ownerID string) ([]*Record, error)
}

// BlobGateway moves file payloads in and out of the external object store.
type BlobGateway interface {
	// UploadBytes stores data under key. The caller picks a unique key.
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) error

	// DownloadBytes returns the canonical bytes stored under key
	DownloadBytes(ctx context.Context, key string) ([]byte, error)

	// DeleteBytes removes key. Deleting an absent key is not an error.
	DeleteBytes(ctx context.Context, key string) error
}

// KeyGenerator produces storage keys for uploaded files.
type KeyGenerator interface {
	GenerateKey(ownerID, fileName string) string
}
