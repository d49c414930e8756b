package stash

import (
	"encoding/json"
	"time"

	"github.com/tendant/stash/pkg/stash/metadata"
)

// ItemType is the domain type for the kind of an item. It is fixed at creation.
type ItemType string

// Item type constants (typed).
const (
	TypeFile    ItemType = "file"
	TypeNote    ItemType = "note"
	TypeContact ItemType = "contact"
	TypeLink    ItemType = "link"

	// TypeAll is the list filter sentinel meaning "every type".
	TypeAll ItemType = "all"
)

// ParseItemType parses a concrete item type. TypeAll is not accepted.
func ParseItemType(s string) (ItemType, bool) {
	switch t := ItemType(s); t {
	case TypeFile, TypeNote, TypeContact, TypeLink:
		return t, true
	default:
		return "", false
	}
}

// Details is the type-specific part of an item. Exactly one variant exists
// per ItemType, so a file can never carry contact fields and vice versa.
type Details interface {
	Type() ItemType
	isDetails()
}

// NoteDetails carries nothing beyond the common fields.
type NoteDetails struct{}

// FileDetails describes an uploaded file. FileURL is the user-visible
// address; Ref holds the blob storage key, which is distinct from it.
type FileDetails struct {
	FileURL  string
	FileName string
	FileSize int64
	MimeType string
	Ref      metadata.FileRef
}

// ContactDetails holds the optional contact fields. The contact's name is
// the item title and its notes are the item content.
type ContactDetails struct {
	metadata.Contact
}

// LinkDetails holds a bookmarked URL. The description is the item content.
type LinkDetails struct {
	metadata.Link
}

func (NoteDetails) Type() ItemType    { return TypeNote }
func (FileDetails) Type() ItemType    { return TypeFile }
func (ContactDetails) Type() ItemType { return TypeContact }
func (LinkDetails) Type() ItemType    { return TypeLink }

func (NoteDetails) isDetails()    {}
func (FileDetails) isDetails()    {}
func (ContactDetails) isDetails() {}
func (LinkDetails) isDetails()    {}

// Item is one catalog entry.
type Item struct {
	ID        int64
	OwnerID   string
	Title     string
	Content   string
	Tags      []string
	Details   Details
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Type returns the item type implied by its details.
func (i *Item) Type() ItemType {
	if i.Details == nil {
		return TypeNote
	}
	return i.Details.Type()
}

// FileName returns the file name for file items and "" otherwise.
func (i *Item) FileName() string {
	if fd, ok := i.Details.(FileDetails); ok {
		return fd.FileName
	}
	return ""
}

// MarshalJSON renders the flat wire shape.
func (i *Item) MarshalJSON() ([]byte, error) {
	rec, err := RecordFromItem(i)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rec)
}

// UnmarshalJSON parses the flat wire shape.
func (i *Item) UnmarshalJSON(b []byte) error {
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return err
	}
	*i = *ItemFromRecord(&rec)
	return nil
}

// Record is the flat row persisted by a Store. Type-specific columns are nil
// for items whose type does not use them.
type Record struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      ItemType  `json:"type"`
	FileURL   *string   `json:"fileUrl"`
	FileName  *string   `json:"fileName"`
	FileSize  *int64    `json:"fileSize"`
	MimeType  *string   `json:"mimeType"`
	Tags      []string  `json:"tags"`
	Metadata  *string   `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so stores never share memory with callers.
func (r *Record) Clone() *Record {
	c := *r
	c.FileURL = clonePtr(r.FileURL)
	c.FileName = clonePtr(r.FileName)
	c.FileSize = clonePtr(r.FileSize)
	c.MimeType = clonePtr(r.MimeType)
	c.Metadata = clonePtr(r.Metadata)
	c.Tags = append(make([]string, 0, len(r.Tags)), r.Tags...)
	return &c
}

// RecordFromItem flattens an item into its persisted row, encoding the
// type-specific payload into the metadata column.
func RecordFromItem(i *Item) (*Record, error) {
	rec := &Record{
		ID:        i.ID,
		OwnerID:   i.OwnerID,
		Title:     i.Title,
		Content:   i.Content,
		Type:      i.Type(),
		Tags:      append(make([]string, 0, len(i.Tags)), i.Tags...),
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}

	var payload metadata.Payload
	switch d := i.Details.(type) {
	case FileDetails:
		rec.FileURL = &d.FileURL
		rec.FileName = &d.FileName
		rec.FileSize = &d.FileSize
		rec.MimeType = &d.MimeType
		payload = d.Ref
	case ContactDetails:
		payload = d.Contact
	case LinkDetails:
		rec.FileURL = &d.URL
		payload = d.Link
	}

	if payload != nil {
		text, err := metadata.EncodePtr(payload)
		if err != nil {
			return nil, err
		}
		rec.Metadata = text
	}
	return rec, nil
}

// ItemFromRecord decodes a persisted row. Malformed metadata degrades to the
// empty payload for the row's type.
func ItemFromRecord(r *Record) *Item {
	item := &Item{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Title:     r.Title,
		Content:   r.Content,
		Tags:      append(make([]string, 0, len(r.Tags)), r.Tags...),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	switch r.Type {
	case TypeFile:
		item.Details = FileDetails{
			FileURL:  deref(r.FileURL),
			FileName: deref(r.FileName),
			FileSize: deref(r.FileSize),
			MimeType: deref(r.MimeType),
			Ref:      metadata.DecodeFileRef(r.Metadata),
		}
	case TypeContact:
		item.Details = ContactDetails{Contact: metadata.DecodeContact(r.Metadata)}
	case TypeLink:
		link := metadata.DecodeLink(r.Metadata)
		if link.URL == "" {
			link.URL = deref(r.FileURL)
		}
		item.Details = LinkDetails{Link: link}
	default:
		item.Details = NoteDetails{}
	}
	return item
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
