// Package metadata encodes and decodes the type-specific payload stored in an
// item's opaque metadata column.
//
// Decoding never fails. Text that is absent, unparsable, or of the wrong
// shape yields the empty payload for the requested kind, so malformed legacy
// rows cannot leak into application logic.
package metadata

import (
	"encoding/json"
	"strings"
)

// Kind names a structured payload shape.
type Kind string

const (
	KindContact Kind = "contact"
	KindLink    Kind = "link"
	KindFile    Kind = "file"
)

// Payload is implemented by the structured metadata kinds.
type Payload interface {
	Kind() Kind
	IsZero() bool
}

// Contact holds the optional contact fields.
type Contact struct {
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Role    string `json:"role,omitempty"`
}

func (Contact) Kind() Kind { return KindContact }

func (c Contact) IsZero() bool { return c == Contact{} }

// Link holds the bookmarked URL.
type Link struct {
	URL string `json:"url"`
}

func (Link) Kind() Kind { return KindLink }

func (l Link) IsZero() bool { return l.URL == "" }

// FileRef points at the blob backing a file item. Older rows carry objectKey
// instead of storageKey; both are accepted on decode.
type FileRef struct {
	StorageKey string `json:"storageKey,omitempty"`
	ObjectKey  string `json:"objectKey,omitempty"`
}

func (FileRef) Kind() Kind { return KindFile }

func (f FileRef) IsZero() bool { return f.Key() == "" }

// Key returns the storage key, preferring storageKey over objectKey.
func (f FileRef) Key() string {
	if f.StorageKey != "" {
		return f.StorageKey
	}
	return f.ObjectKey
}

// Encode serializes a payload to its metadata text.
func Encode(p Payload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodePtr is Encode for nullable columns: a zero payload encodes to nil.
// Contacts always carry an object, "{}" when every field is empty.
func EncodePtr(p Payload) (*string, error) {
	if p == nil || (p.IsZero() && p.Kind() != KindContact) {
		return nil, nil
	}
	s, err := Encode(p)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Decode parses text as the payload for kind. Unknown kinds decode to nil.
func Decode(kind Kind, text *string) Payload {
	switch kind {
	case KindContact:
		return DecodeContact(text)
	case KindLink:
		return DecodeLink(text)
	case KindFile:
		return DecodeFileRef(text)
	default:
		return nil
	}
}

// DecodeContact never fails; malformed input yields an empty Contact.
func DecodeContact(text *string) Contact {
	var c Contact
	if !decodeObject(text, &c) {
		return Contact{}
	}
	return c
}

// DecodeLink never fails; malformed input yields an empty Link.
func DecodeLink(text *string) Link {
	var l Link
	if !decodeObject(text, &l) {
		return Link{}
	}
	return l
}

// DecodeFileRef never fails; malformed input yields an empty FileRef.
func DecodeFileRef(text *string) FileRef {
	var f FileRef
	if !decodeObject(text, &f) {
		return FileRef{}
	}
	return f
}

// decodeObject reports whether text held a JSON object that matched v's
// field types. v is left partially written on failure, callers discard it.
func decodeObject(text *string, v any) bool {
	if text == nil {
		return false
	}
	s := strings.TrimSpace(*text)
	if s == "" || s[0] != '{' {
		return false
	}
	return json.Unmarshal([]byte(s), v) == nil
}
