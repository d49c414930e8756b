package stash

import (
	"net/url"
	"strings"
)

func validateDraft(d Draft) error {
	var fields []FieldError
	if strings.TrimSpace(d.Title) == "" {
		fields = append(fields, FieldError{Field: "title", Message: "is required"})
	}

	switch details := d.Details.(type) {
	case FileDetails:
		if details.Ref.Key() == "" {
			fields = append(fields, FieldError{Field: "metadata", Message: "file items need a storage key"})
		}
		if details.FileSize < 0 {
			fields = append(fields, FieldError{Field: "fileSize", Message: "must not be negative"})
		}
	case LinkDetails:
		if msg := checkURL(details.URL); msg != "" {
			fields = append(fields, FieldError{Field: "url", Message: msg})
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func checkURL(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "is required"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "must be an absolute URL"
	}
	return ""
}

// applyPatch merges p into item. Changing type or owner is rejected.
func applyPatch(item *Item, p Patch) error {
	var fields []FieldError
	reject := func(field, msg string) {
		fields = append(fields, FieldError{Field: field, Message: msg})
	}

	if p.Type != nil && *p.Type != item.Type() {
		reject("type", "cannot be changed")
	}
	if p.OwnerID != nil && *p.OwnerID != item.OwnerID {
		reject("ownerId", "cannot be changed")
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		reject("title", "must not be empty")
	}

	switch d := item.Details.(type) {
	case FileDetails:
		if p.FileName != nil {
			if strings.TrimSpace(*p.FileName) == "" {
				reject("fileName", "must not be empty")
			}
			d.FileName = *p.FileName
		}
		if p.MimeType != nil {
			d.MimeType = *p.MimeType
		}
		item.Details = d
	case ContactDetails:
		setIf(&d.Email, p.Email)
		setIf(&d.Phone, p.Phone)
		setIf(&d.Company, p.Company)
		setIf(&d.Role, p.Role)
		item.Details = d
	case LinkDetails:
		if p.URL != nil {
			if msg := checkURL(*p.URL); msg != "" {
				reject("url", msg)
			}
			d.URL = *p.URL
		}
		item.Details = d
	}

	if item.Type() != TypeFile && (p.FileName != nil || p.MimeType != nil) {
		reject("fileName", "only file items have file fields")
	}
	if item.Type() != TypeContact && (p.Email != nil || p.Phone != nil || p.Company != nil || p.Role != nil) {
		reject("metadata", "only contact items have contact fields")
	}
	if item.Type() != TypeLink && p.URL != nil {
		reject("url", "only link items have a url")
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	setIf(&item.Title, p.Title)
	setIf(&item.Content, p.Content)
	if p.Tags != nil {
		item.Tags = append(make([]string, 0, len(*p.Tags)), (*p.Tags)...)
	}
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
