// Package stash is a personal item catalog: uploaded files, notes, contacts
// and bookmarked links kept under one owner-scoped, tagged, searchable list.
//
// Repository is the entry point. It owns catalog rows through a Store
// (memory, Postgres or SQLite under store/) and file payloads through a
// BlobGateway (see package blob), keeping the two consistent when one side
// fails.
//
// # Item Model
//
// Item carries the fields common to every kind plus Details, whose concrete
// type (NoteDetails, FileDetails, ContactDetails, LinkDetails) fixes the item
// type for its whole life. Stores see only the flat Record; the conversion
// happens in RecordFromItem and ItemFromRecord, where the metadata column is
// decoded by package metadata. A row with unreadable metadata still loads,
// with empty details.
package stash
