package stash

// Request DTOs

// Filter narrows a List call. Zero values mean "no restriction".
type Filter struct {
	Type   ItemType
	Search string
}

// Draft is a validated request to create an item. A nil Details creates a note.
type Draft struct {
	Title   string
	Content string
	Tags    []string
	Details Details
}

// FileUpload is a request to store a file payload and catalog it.
type FileUpload struct {
	Title       string
	Description string
	FileName    string
	ContentType string
	Data        []byte
	Tags        []string
}

// Patch is a partial update. Nil fields are left untouched.
//
// Type and OwnerID exist so that callers forwarding raw client input can pass
// them through: a value different from the stored one is rejected with a
// ValidationError, an equal value is a no-op.
type Patch struct {
	Title   *string
	Content *string
	Tags    *[]string

	Type    *ItemType
	OwnerID *string

	// File items
	FileName *string
	MimeType *string

	// Contact items
	Email   *string
	Phone   *string
	Company *string
	Role    *string

	// Link items
	URL *string
}
