package delivery

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/stash/pkg/stash"
)

func fileItem(name, mime string) *stash.Item {
	return &stash.Item{
		ID:    1,
		Title: name,
		Details: stash.FileDetails{
			FileName: name,
			MimeType: mime,
			FileSize: 5,
		},
	}
}

func TestParseAction(t *testing.T) {
	assert.Equal(t, ActionPreview, ParseAction(""))
	assert.Equal(t, ActionPreview, ParseAction("preview"))
	assert.Equal(t, ActionPreview, ParseAction("bogus"))
	assert.Equal(t, ActionDownload, ParseAction("download"))
	assert.Equal(t, ActionDownload, ParseAction(" Download "))
}

func TestSetHeaders_Preview(t *testing.T) {
	rr := httptest.NewRecorder()
	SetHeaders(rr, fileItem("report.pdf", "application/pdf"), 1234, ActionPreview)

	h := rr.Header()
	assert.Equal(t, "application/pdf", h.Get("Content-Type"))
	assert.Equal(t, `inline; filename="report.pdf"`, h.Get("Content-Disposition"))
	assert.Equal(t, "1234", h.Get("Content-Length"))
	assert.Equal(t, "no-store, no-cache, must-revalidate", h.Get("Cache-Control"))
	assert.Equal(t, "no-cache", h.Get("Pragma"))
	assert.Equal(t, "0", h.Get("Expires"))
}

func TestSetHeaders_Download(t *testing.T) {
	rr := httptest.NewRecorder()
	SetHeaders(rr, fileItem("report.pdf", ""), 0, ActionDownload)

	assert.Equal(t, "application/octet-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="report.pdf"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "0", rr.Header().Get("Content-Length"))
}

func TestDisposition_Quoting(t *testing.T) {
	assert.Equal(t, `attachment; filename="a \"b\" c.txt"`, Disposition(ActionDownload, `a "b" c.txt`))
	assert.Equal(t, `inline; filename="evilheader.txt"`, Disposition(ActionPreview, "evil\r\nheader.txt"))
}

func TestWrite(t *testing.T) {
	item := fileItem("hello.txt", "text/plain")
	data := []byte("hello")

	t.Run("GET", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/files/k", nil)
		require.NoError(t, Write(rr, req, item, data, ActionPreview))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "hello", rr.Body.String())
		assert.Equal(t, "5", rr.Header().Get("Content-Length"))
	})

	t.Run("HEAD", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodHead, "/files/k", nil)
		require.NoError(t, Write(rr, req, item, data, ActionDownload))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Body.String())
		assert.Equal(t, "5", rr.Header().Get("Content-Length"))
	})
}
