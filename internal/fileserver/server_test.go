package fileserver

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CristiBulat/PR-Repo/internal/counter"
	"github.com/CristiBulat/PR-Repo/internal/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer builds a serve root with a few files and returns a router
// over it.
func newTestServer(t *testing.T, mode counter.Mode, limit int) (*gin.Engine, *Server) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.html"), []byte("<h1>hi</h1>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data.bin"), []byte{0x00, 0x01, 0x02}, 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "books"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "books", "chapter1.pdf"), []byte("%PDF-1.4 fake"), 0644))

	srv, err := New(root, counter.New(mode), ratelimit.New(limit, time.Second), 0)
	require.NoError(t, err)

	router := gin.New()
	srv.Register(router)
	return router, srv
}

func get(router *gin.Engine, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if ip != "" {
		req.RemoteAddr = ip + ":12345"
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMissingRootRejected(t *testing.T) {
	_, err := New("/no/such/dir", counter.New(counter.ModeMulti), ratelimit.New(5, time.Second), 0)
	assert.Error(t, err)
}

func TestServeFileWithContentType(t *testing.T) {
	router, _ := newTestServer(t, counter.ModeThreadsafe, 100)

	w := get(router, "/hello.html", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html", w.Header().Get("Content-Type"))
	assert.Equal(t, "<h1>hi</h1>", w.Body.String())

	w = get(router, "/books/chapter1.pdf", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestNotFound(t *testing.T) {
	router, _ := newTestServer(t, counter.ModeMulti, 100)
	w := get(router, "/nope.txt", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	router, _ := newTestServer(t, counter.ModeMulti, 100)

	req := httptest.NewRequest(http.MethodPost, "/hello.html", strings.NewReader("x"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestTraversalForbidden(t *testing.T) {
	router, _ := newTestServer(t, counter.ModeMulti, 100)

	for _, path := range []string{
		"/../etc/passwd",
		"/books/../../etc/passwd",
		"/..",
	} {
		w := get(router, path, "")
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}
}

func TestDirectoryListing(t *testing.T) {
	router, srv := newTestServer(t, counter.ModeThreadsafe, 100)

	// Two hits on the file, then list its directory.
	get(router, "/books/chapter1.pdf", "")
	get(router, "/books/chapter1.pdf", "")

	w := get(router, "/books/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	html := w.Body.String()
	assert.Contains(t, html, "Index of /books/")
	assert.Contains(t, html, "chapter1.pdf")
	assert.Contains(t, html, "Parent Directory")

	assert.Equal(t, 2, srv.Counter().Get("/books/chapter1.pdf"))
	assert.Equal(t, 1, srv.Counter().Get("/books/"), "directory paths are counted with a trailing slash")
}

func TestDirectoryPathCanonicalizedWithSlash(t *testing.T) {
	router, srv := newTestServer(t, counter.ModeThreadsafe, 100)

	w := get(router, "/books", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, srv.Counter().Get("/books/"))
	assert.Equal(t, 0, srv.Counter().Get("/books"))
}

func TestRootListsWhenNoIndex(t *testing.T) {
	router, _ := newTestServer(t, counter.ModeMulti, 100)

	w := get(router, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Index of /")
	assert.Contains(t, w.Body.String(), "books/")
}

func TestRootServesIndexHTML(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<p>home</p>"), 0644))

	srv, err := New(root, counter.New(counter.ModeThreadsafe), ratelimit.New(5, time.Second), 0)
	require.NoError(t, err)
	router := gin.New()
	srv.Register(router)

	w := get(router, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<p>home</p>", w.Body.String())
	assert.Equal(t, 1, srv.Counter().Get("/index.html"))
}

func TestRateLimitModeRejectsBurst(t *testing.T) {
	router, _ := newTestServer(t, counter.ModeRateLimit, 5)

	allowed, rejected := 0, 0
	for i := 0; i < 20; i++ {
		w := get(router, "/hello.html", "10.0.0.1")
		switch w.Code {
		case http.StatusOK:
			allowed++
		case http.StatusTooManyRequests:
			rejected++
		}
	}
	assert.Equal(t, 5, allowed)
	assert.Equal(t, 15, rejected)

	// A different client is unaffected.
	w := get(router, "/hello.html", "10.0.0.2")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNonRateLimitedModesIgnoreLimiter(t *testing.T) {
	router, _ := newTestServer(t, counter.ModeThreadsafe, 1)

	for i := 0; i < 10; i++ {
		w := get(router, "/hello.html", "10.0.0.1")
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2*1024*1024))
}
