package stash_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/stash/pkg/stash"
	"github.com/tendant/stash/pkg/stash/metadata"
)

func TestItem_MarshalNoteHasExplicitNulls(t *testing.T) {
	ts := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	item := &stash.Item{ID: 3, OwnerID: "alice", Title: "Groceries", Content: "milk, eggs", CreatedAt: ts, UpdatedAt: ts}

	b, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 3,
		"ownerId": "alice",
		"title": "Groceries",
		"content": "milk, eggs",
		"type": "note",
		"fileUrl": null,
		"fileName": null,
		"fileSize": null,
		"mimeType": null,
		"tags": [],
		"metadata": null,
		"createdAt": "2024-06-01T09:00:00Z",
		"updatedAt": "2024-06-01T09:00:00Z"
	}`, string(b))
}

func TestRecordFromItem_EmptyContactKeepsObject(t *testing.T) {
	contact, err := stash.RecordFromItem(&stash.Item{Title: "Ada", Details: stash.ContactDetails{}})
	require.NoError(t, err)
	require.NotNil(t, contact.Metadata)
	assert.Equal(t, `{}`, *contact.Metadata)

	note, err := stash.RecordFromItem(&stash.Item{Title: "Groceries", Details: stash.NoteDetails{}})
	require.NoError(t, err)
	assert.Nil(t, note.Metadata)
}

func TestItem_MarshalLinkCarriesURLTwice(t *testing.T) {
	item := &stash.Item{Title: "Docs", Details: stash.LinkDetails{Link: metadata.Link{URL: "https://example.com"}}}

	b, err := json.Marshal(item)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(b, &wire))
	assert.Equal(t, "link", wire["type"])
	assert.Equal(t, "https://example.com", wire["fileUrl"])
	assert.JSONEq(t, `{"url":"https://example.com"}`, wire["metadata"].(string))
}

func TestItem_UnmarshalFile(t *testing.T) {
	raw := `{"id":9,"ownerId":"alice","title":"r","content":"","type":"file",
		"fileUrl":"/files/k","fileName":"r.pdf","fileSize":10,"mimeType":"application/pdf",
		"tags":["a"],"metadata":"{\"objectKey\":\"legacy/k\"}",
		"createdAt":"2024-06-01T09:00:00Z","updatedAt":"2024-06-01T09:00:00Z"}`

	var item stash.Item
	require.NoError(t, json.Unmarshal([]byte(raw), &item))

	fd, ok := item.Details.(stash.FileDetails)
	require.True(t, ok)
	assert.Equal(t, "r.pdf", item.FileName())
	assert.Equal(t, int64(10), fd.FileSize)
	assert.Equal(t, "legacy/k", fd.Ref.Key())
}

func TestItemFromRecord_MalformedMetadataDegrades(t *testing.T) {
	bad := "not json"

	contact := stash.ItemFromRecord(&stash.Record{Type: stash.TypeContact, Metadata: &bad})
	assert.Equal(t, stash.ContactDetails{}, contact.Details)

	file := stash.ItemFromRecord(&stash.Record{Type: stash.TypeFile, Metadata: &bad})
	assert.Equal(t, "", file.Details.(stash.FileDetails).Ref.Key())

	url := "https://example.com/fallback"
	link := stash.ItemFromRecord(&stash.Record{Type: stash.TypeLink, FileURL: &url, Metadata: &bad})
	assert.Equal(t, url, link.Details.(stash.LinkDetails).URL)
}

func TestRecordFromItem_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	items := []*stash.Item{
		{ID: 1, OwnerID: "a", Title: "n", Tags: []string{}, Details: stash.NoteDetails{}, CreatedAt: ts, UpdatedAt: ts},
		{ID: 2, OwnerID: "a", Title: "c", Tags: []string{"x", "x"}, Details: stash.ContactDetails{Contact: metadata.Contact{Email: "e@example.com"}}, CreatedAt: ts, UpdatedAt: ts},
		{ID: 3, OwnerID: "a", Title: "l", Tags: []string{}, Details: stash.LinkDetails{Link: metadata.Link{URL: "https://example.com"}}, CreatedAt: ts, UpdatedAt: ts},
		{ID: 4, OwnerID: "a", Title: "f", Tags: []string{}, Details: stash.FileDetails{
			FileURL: "/files/k", FileName: "f.txt", FileSize: 3, MimeType: "text/plain",
			Ref: metadata.FileRef{StorageKey: "k"},
		}, CreatedAt: ts, UpdatedAt: ts},
	}

	for _, item := range items {
		rec, err := stash.RecordFromItem(item)
		require.NoError(t, err)
		assert.Equal(t, item, stash.ItemFromRecord(rec), item.Title)
	}
}

func TestRecord_CloneIsDeep(t *testing.T) {
	name := "a.txt"
	rec := &stash.Record{FileName: &name, Tags: []string{"x"}}
	c := rec.Clone()

	*c.FileName = "b.txt"
	c.Tags[0] = "y"
	assert.Equal(t, "a.txt", *rec.FileName)
	assert.Equal(t, []string{"x"}, rec.Tags)
}

func TestParseItemType(t *testing.T) {
	typ, ok := stash.ParseItemType("contact")
	assert.True(t, ok)
	assert.Equal(t, stash.TypeContact, typ)

	_, ok = stash.ParseItemType("all")
	assert.False(t, ok)
	_, ok = stash.ParseItemType("video")
	assert.False(t, ok)
}
