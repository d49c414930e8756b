// Package delivery writes a file item's bytes back to an HTTP client with
// the headers a browser needs to preview or download it.
package delivery

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/tendant/stash/pkg/stash"
)

// Action selects inline display or a forced download.
type Action string

const (
	ActionPreview  Action = "preview"
	ActionDownload Action = "download"
)

const defaultContentType = "application/octet-stream"

// ParseAction maps the ?action= query value. Anything but "download" previews.
func ParseAction(s string) Action {
	if strings.EqualFold(strings.TrimSpace(s), string(ActionDownload)) {
		return ActionDownload
	}
	return ActionPreview
}

// SetHeaders sets content type, disposition, length and no-cache headers.
func SetHeaders(w http.ResponseWriter, item *stash.Item, size int, action Action) {
	h := w.Header()

	contentType := defaultContentType
	if fd, ok := item.Details.(stash.FileDetails); ok && fd.MimeType != "" {
		contentType = fd.MimeType
	}
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", Disposition(action, item.FileName()))
	h.Set("Content-Length", strconv.Itoa(size))
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	h.Set("X-Content-Type-Options", "nosniff")
}

// Disposition builds the Content-Disposition value for action.
func Disposition(action Action, fileName string) string {
	kind := "inline"
	if action == ActionDownload {
		kind = "attachment"
	}
	return kind + `; filename="` + quoteFileName(fileName) + `"`
}

var fileNameReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", "", "\n", "")

func quoteFileName(name string) string {
	return fileNameReplacer.Replace(name)
}

// Write sends data with headers for item. HEAD requests get headers only.
func Write(w http.ResponseWriter, r *http.Request, item *stash.Item, data []byte, action Action) error {
	SetHeaders(w, item, len(data), action)
	w.WriteHeader(http.StatusOK)
	if r != nil && r.Method == http.MethodHead {
		return nil
	}
	_, err := w.Write(data)
	return err
}
