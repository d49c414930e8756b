package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/stash/pkg/stash"
	"github.com/tendant/stash/pkg/stash/metadata"
)

const (
	// DefaultMaxUploadBytes bounds multipart upload bodies
	DefaultMaxUploadBytes int64 = 10 << 20

	maxJSONBodyBytes int64 = 1 << 20
)

// ItemRepository is the subset of *stash.Repository the handlers use
type ItemRepository interface {
	List(ctx context.Context, ownerID string, filter stash.Filter) ([]*stash.Item, error)
	Get(ctx context.Context, id int64) (*stash.Item, error)
	Create(ctx context.Context, ownerID string, draft stash.Draft) (*stash.Item, error)
	CreateFile(ctx context.Context, ownerID string, upload stash.FileUpload) (*stash.Item, error)
	Update(ctx context.Context, id int64, patch stash.Patch) (*stash.Item, error)
	Delete(ctx context.Context, id int64) (bool, error)
	ResolveFile(ctx context.Context, ownerID, key string) (*stash.Item, []byte, error)
}

// ItemsHandler serves the /items routes
type ItemsHandler struct {
	repo           ItemRepository
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewItemsHandler creates a new items handler
func NewItemsHandler(repo ItemRepository, logger *slog.Logger, maxUploadBytes int64) *ItemsHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &ItemsHandler{repo: repo, logger: logger, maxUploadBytes: maxUploadBytes}
}

// Routes returns the router for items endpoints
func (h *ItemsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListItems)
	r.Post("/file", h.CreateFile)
	r.Post("/note", h.CreateNote)
	r.Post("/contact", h.CreateContact)
	r.Post("/link", h.CreateLink)
	r.Get("/{id}", h.GetItem)
	r.Patch("/{id}", h.UpdateItem)
	r.Delete("/{id}", h.DeleteItem)
	return r
}

// CreateNoteRequest is the request body for creating a note
type CreateNoteRequest struct {
	Title   string   `json:"title" validate:"required,max=500"`
	Content string   `json:"content"`
	Tags    []string `json:"tags" validate:"max=50,dive,max=100"`
}

// CreateContactRequest is the request body for creating a contact
type CreateContactRequest struct {
	Name    string   `json:"name" validate:"required,max=500"`
	Email   string   `json:"email" validate:"omitempty,email"`
	Phone   string   `json:"phone" validate:"max=50"`
	Company string   `json:"company" validate:"max=200"`
	Role    string   `json:"role" validate:"max=200"`
	Notes   string   `json:"notes"`
	Tags    []string `json:"tags" validate:"max=50,dive,max=100"`
}

// CreateLinkRequest is the request body for creating a link
type CreateLinkRequest struct {
	Title       string   `json:"title" validate:"required,max=500"`
	URL         string   `json:"url" validate:"required,url"`
	Description string   `json:"description"`
	Tags        []string `json:"tags" validate:"max=50,dive,max=100"`
}

// UpdateItemRequest is a partial item. Absent fields are left untouched.
type UpdateItemRequest struct {
	Title    *string   `json:"title" validate:"omitempty,min=1,max=500"`
	Content  *string   `json:"content"`
	Tags     *[]string `json:"tags" validate:"omitempty,max=50,dive,max=100"`
	Type     *string   `json:"type" validate:"omitempty,oneof=file note contact link"`
	OwnerID  *string   `json:"ownerId"`
	FileName *string   `json:"fileName" validate:"omitempty,min=1"`
	MimeType *string   `json:"mimeType"`
	Email    *string   `json:"email" validate:"omitempty,email"`
	Phone    *string   `json:"phone"`
	Company  *string   `json:"company"`
	Role     *string   `json:"role"`
	URL      *string   `json:"url" validate:"omitempty,url"`
}

func (req UpdateItemRequest) patch() stash.Patch {
	p := stash.Patch{
		Title:    req.Title,
		Content:  req.Content,
		Tags:     req.Tags,
		OwnerID:  req.OwnerID,
		FileName: req.FileName,
		MimeType: req.MimeType,
		Email:    req.Email,
		Phone:    req.Phone,
		Company:  req.Company,
		Role:     req.Role,
		URL:      req.URL,
	}
	if req.Type != nil {
		t := stash.ItemType(*req.Type)
		p.Type = &t
	}
	return p
}

// DeleteResponse is the response body for a delete
type DeleteResponse struct {
	Success bool `json:"success"`
}

// ListItems returns the caller's items, newest first
func (h *ItemsHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	filter := stash.Filter{Search: r.URL.Query().Get("search")}
	if raw := r.URL.Query().Get("type"); raw != "" && raw != string(stash.TypeAll) {
		t, ok := stash.ParseItemType(raw)
		if !ok {
			badRequest(w, r, "type", "must be one of: all file note contact link")
			return
		}
		filter.Type = t
	}

	items, err := h.repo.List(r.Context(), owner, filter)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, items)
}

// GetItem returns one item owned by the caller
func (h *ItemsHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, item)
}

// CreateNote creates a note
func (h *ItemsHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.create(w, r, stash.Draft{Title: req.Title, Content: req.Content, Tags: req.Tags, Details: stash.NoteDetails{}})
}

// CreateContact creates a contact. The name becomes the title and the notes
// the content.
func (h *ItemsHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req CreateContactRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.create(w, r, stash.Draft{
		Title:   req.Name,
		Content: req.Notes,
		Tags:    req.Tags,
		Details: stash.ContactDetails{Contact: metadata.Contact{
			Email:   req.Email,
			Phone:   req.Phone,
			Company: req.Company,
			Role:    req.Role,
		}},
	})
}

// CreateLink creates a link. The description becomes the content.
func (h *ItemsHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.create(w, r, stash.Draft{
		Title:   req.Title,
		Content: req.Description,
		Tags:    req.Tags,
		Details: stash.LinkDetails{Link: metadata.Link{URL: req.URL}},
	})
}

func (h *ItemsHandler) create(w http.ResponseWriter, r *http.Request, draft stash.Draft) {
	owner, _ := OwnerFromContext(r.Context())
	item, err := h.repo.Create(r.Context(), owner, draft)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, item)
}

// CreateFile stores a multipart upload: "file" is the payload, "tags" a JSON
// array of strings, "title" and "description" are optional.
func (h *ItemsHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) ||
			strings.Contains(err.Error(), "request body too large") {
			writeError(w, r, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "upload exceeds the size limit", nil)
			return
		}
		badRequest(w, r, "file", "multipart form expected")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, r, "file", "is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	tags, err := parseTags(r.FormValue("tags"))
	if err != nil {
		badRequest(w, r, "tags", "must be a JSON array of strings")
		return
	}

	item, err := h.repo.CreateFile(r.Context(), owner, stash.FileUpload{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: r.FormValue("description"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Tags:        tags,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, item)
}

func parseTags(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// UpdateItem applies a partial update to an item owned by the caller
func (h *ItemsHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	updated, err := h.repo.Update(r.Context(), item.ID, req.patch())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, updated)
}

// DeleteItem deletes an item owned by the caller
func (h *ItemsHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	deleted, err := h.repo.Delete(r.Context(), item.ID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if !deleted {
		notFound(w, r)
		return
	}
	render.JSON(w, r, DeleteResponse{Success: true})
}

// ownedItem loads {id} and answers 404 unless the caller owns it.
func (h *ItemsHandler) ownedItem(w http.ResponseWriter, r *http.Request) (*stash.Item, bool) {
	owner, _ := OwnerFromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		notFound(w, r)
		return nil, false
	}

	item, err := h.repo.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return nil, false
	}
	if item.OwnerID != owner {
		notFound(w, r)
		return nil, false
	}
	return item, true
}

func (h *ItemsHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		badRequest(w, r, "body", "must be a valid JSON object")
		return false
	}
	if err := validateRequest(dst); err != nil {
		respondError(w, r, h.logger, err)
		return false
	}
	return true
}
