package stash

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tendant/stash/pkg/stash/metadata"
	"github.com/tendant/stash/pkg/stash/objectkey"
)

// DefaultFileURLPrefix is the route under which file blobs are served.
const DefaultFileURLPrefix = "/files/"

// Repository owns the item catalog. It is constructed once at process start
// and shared by request handlers; it holds no per-request state.
//
// Update has no optimistic concurrency token: two concurrent updates of the
// same item both read the full row and the later write wins.
type Repository struct {
	store         Store
	blobs         BlobGateway
	keys          KeyGenerator
	logger        *slog.Logger
	now           func() time.Time
	fileURLPrefix string
}

// Option represents a functional option for configuring the repository
type Option func(*Repository)

// WithStore sets the backing catalog store
func WithStore(store Store) Option {
	return func(r *Repository) {
		r.store = store
	}
}

// WithBlobGateway sets the gateway used for file payloads
func WithBlobGateway(gw BlobGateway) Option {
	return func(r *Repository) {
		r.blobs = gw
	}
}

// WithKeyGenerator overrides the storage key generator
func WithKeyGenerator(keys KeyGenerator) Option {
	return func(r *Repository) {
		r.keys = keys
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithClock overrides time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// WithFileURLPrefix sets the prefix of the user-visible fileUrl of uploads
func WithFileURLPrefix(prefix string) Option {
	return func(r *Repository) {
		r.fileURLPrefix = prefix
	}
}

// NewRepository creates a repository with the given options. A store is required.
func NewRepository(options ...Option) (*Repository, error) {
	r := &Repository{
		keys:          objectkey.NewRecommendedGenerator(),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:           func() time.Time { return time.Now().UTC() },
		fileURLPrefix: DefaultFileURLPrefix,
	}

	for _, option := range options {
		option(r)
	}

	if r.store == nil {
		return nil, fmt.Errorf("store is required")
	}

	return r, nil
}

// List returns the owner's items matching filter, newest first. Items created
// at the same instant keep their insertion order.
func (r *Repository) List(ctx context.Context, ownerID string, filter Filter) ([]*Item, error) {
	records, err := r.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, backendErr("list", err)
	}

	needle := strings.ToLower(filter.Search)
	items := make([]*Item, 0, len(records))
	for _, rec := range records {
		if rec.OwnerID != ownerID {
			continue
		}
		if filter.Type != "" && filter.Type != TypeAll && rec.Type != filter.Type {
			continue
		}
		item := ItemFromRecord(rec)
		if needle != "" && !matchesSearch(item, needle) {
			continue
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	return items, nil
}

func matchesSearch(item *Item, needle string) bool {
	return strings.Contains(strings.ToLower(item.Title), needle) ||
		strings.Contains(strings.ToLower(item.Content), needle) ||
		strings.Contains(strings.ToLower(item.FileName()), needle)
}

// Get returns an item by id without any ownership check; callers that act on
// behalf of an owner must compare Item.OwnerID themselves.
func (r *Repository) Get(ctx context.Context, id int64) (*Item, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, backendErr("get", err)
	}
	return ItemFromRecord(rec), nil
}

// Create persists a new item for ownerID.
func (r *Repository) Create(ctx context.Context, ownerID string, draft Draft) (*Item, error) {
	if ownerID == "" {
		return nil, NewValidationError("ownerId", "is required")
	}
	if draft.Details == nil {
		draft.Details = NoteDetails{}
	}
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	now := r.now()
	item := &Item{
		OwnerID:   ownerID,
		Title:     draft.Title,
		Content:   draft.Content,
		Tags:      append(make([]string, 0, len(draft.Tags)), draft.Tags...),
		Details:   draft.Details,
		CreatedAt: now,
		UpdatedAt: now,
	}

	rec, err := RecordFromItem(item)
	if err != nil {
		return nil, backendErr("encode", err)
	}
	if err := r.store.Insert(ctx, rec); err != nil {
		return nil, backendErr("create", err)
	}
	item.ID = rec.ID

	r.logger.InfoContext(ctx, "item created", "item_id", item.ID, "owner_id", ownerID, "type", item.Type())
	return item, nil
}

// CreateFile uploads the payload first and then catalogs it. If cataloging
// fails the just-uploaded blob is removed on a best-effort basis.
func (r *Repository) CreateFile(ctx context.Context, ownerID string, upload FileUpload) (*Item, error) {
	if r.blobs == nil {
		return nil, &BackendError{Op: "create_file", Err: errors.New("no blob gateway configured")}
	}
	if upload.FileName == "" {
		return nil, NewValidationError("file", "file name is required")
	}
	if ownerID == "" {
		return nil, NewValidationError("ownerId", "is required")
	}

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := r.keys.GenerateKey(ownerID, upload.FileName)
	if err := r.blobs.UploadBytes(ctx, key, upload.Data, contentType); err != nil {
		r.logger.ErrorContext(ctx, "file upload failed", "owner_id", ownerID, "storage_key", key, "error", err)
		return nil, err
	}

	title := upload.Title
	if title == "" {
		title = upload.FileName
	}

	item, err := r.Create(ctx, ownerID, Draft{
		Title:   title,
		Content: upload.Description,
		Tags:    upload.Tags,
		Details: FileDetails{
			FileURL:  r.fileURL(key),
			FileName: upload.FileName,
			FileSize: int64(len(upload.Data)),
			MimeType: contentType,
			Ref:      metadata.FileRef{StorageKey: key},
		},
	})
	if err != nil {
		if delErr := r.blobs.DeleteBytes(context.WithoutCancel(ctx), key); delErr != nil {
			r.logger.WarnContext(ctx, "failed to remove orphaned blob", "storage_key", key, "error", delErr)
		}
		return nil, err
	}
	return item, nil
}

// Update merges patch over the stored item and always refreshes UpdatedAt.
func (r *Repository) Update(ctx context.Context, id int64, patch Patch) (*Item, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, backendErr("get", err)
	}
	item := ItemFromRecord(rec)

	if err := applyPatch(item, patch); err != nil {
		return nil, err
	}

	previous := item.UpdatedAt
	item.UpdatedAt = r.now()
	if item.UpdatedAt.Before(previous) {
		item.UpdatedAt = previous
	}

	updated, err := RecordFromItem(item)
	if err != nil {
		return nil, backendErr("encode", err)
	}
	if err := r.store.Update(ctx, updated); err != nil {
		return nil, backendErr("update", err)
	}

	r.logger.InfoContext(ctx, "item updated", "item_id", id)
	return item, nil
}

// Delete removes an item and reports whether it existed. For file items the
// blob is released as a best-effort side effect: a failing DeleteBytes is
// logged and does not change the result.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	rec, err := r.store.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, backendErr("delete", err)
	}

	item := ItemFromRecord(rec)
	r.logger.InfoContext(ctx, "item deleted", "item_id", id, "type", item.Type())

	if item.Type() != TypeFile {
		return true, nil
	}

	key := r.storageKey(item)
	switch {
	case key == "":
		r.logger.WarnContext(ctx, "deleted file item has no storage key", "item_id", id)
	case r.blobs == nil:
		r.logger.WarnContext(ctx, "no blob gateway configured, blob left in place", "item_id", id, "storage_key", key)
	default:
		if err := r.blobs.DeleteBytes(context.WithoutCancel(ctx), key); err != nil {
			r.logger.WarnContext(ctx, "cascaded blob delete failed", "item_id", id, "storage_key", key, "error", err)
		}
	}
	return true, nil
}

// ResolveFile finds the owner's file item stored under key and downloads its
// payload. Keys owned by someone else resolve to ErrItemNotFound.
func (r *Repository) ResolveFile(ctx context.Context, ownerID, key string) (*Item, []byte, error) {
	if r.blobs == nil {
		return nil, nil, &BackendError{Op: "resolve_file", Err: errors.New("no blob gateway configured")}
	}

	items, err := r.List(ctx, ownerID, Filter{Type: TypeFile})
	if err != nil {
		return nil, nil, err
	}
	for _, item := range items {
		if r.storageKey(item) != key {
			continue
		}
		data, err := r.blobs.DownloadBytes(ctx, key)
		if err != nil {
			return item, nil, err
		}
		return item, data, nil
	}
	return nil, nil, ErrItemNotFound
}

// storageKey recovers the blob key of a file item, falling back to the
// fileUrl for rows written before keys were kept in metadata.
func (r *Repository) storageKey(item *Item) string {
	fd, ok := item.Details.(FileDetails)
	if !ok {
		return ""
	}
	if key := fd.Ref.Key(); key != "" {
		return key
	}
	if r.fileURLPrefix != "" && strings.HasPrefix(fd.FileURL, r.fileURLPrefix) {
		key, err := url.PathUnescape(strings.TrimPrefix(fd.FileURL, r.fileURLPrefix))
		if err == nil {
			return key
		}
	}
	return ""
}

func (r *Repository) fileURL(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return r.fileURLPrefix + strings.Join(segments, "/")
}
