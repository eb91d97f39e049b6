// Package fileserver implements the concurrent file-serving front door:
// static files and directory listings behind the per-client rate limiter
// and the per-path hit counter.
//
// The interesting part is not the file I/O but the admission pipeline.
// Depending on the configured counter mode the server admits requests
// serially or concurrently, counts hits with or without locking, and
// applies the sliding-window rate limiter before doing any work at all.
package fileserver

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/CristiBulat/PR-Repo/internal/counter"
	"github.com/CristiBulat/PR-Repo/internal/metrics"
	"github.com/CristiBulat/PR-Repo/internal/ratelimit"
)

// mimeTypes maps the common extensions; anything else is sniffed from
// content.
var mimeTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".png":  "image/png",
	".pdf":  "application/pdf",
	".css":  "text/css",
	".js":   "application/javascript",
}

// Server serves files from a root directory.
type Server struct {
	root      string
	counter   *counter.Counter
	limiter   *ratelimit.Limiter
	workDelay time.Duration

	// serial admits one request at a time in single mode.
	serial sync.Mutex
}

// New creates a Server for root. The directory must exist.
func New(root string, ctr *counter.Counter, limiter *ratelimit.Limiter, workDelay time.Duration) (*Server, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("directory %q does not exist", root)
	}
	return &Server{
		root:      abs,
		counter:   ctr,
		limiter:   limiter,
		workDelay: workDelay,
	}, nil
}

// Counter exposes the hit counter, mostly for tests.
func (s *Server) Counter() *counter.Counter {
	return s.counter
}

// Register mounts the catch-all file handler on r.
func (s *Server) Register(r *gin.Engine) {
	r.NoRoute(s.Handle)
}

// Handle serves one request through the admission pipeline:
// rate limit → (optional) serialization → (optional) simulated work →
// path resolution → counter → file or listing.
func (s *Server) Handle(c *gin.Context) {
	mode := s.counter.Mode()

	if mode.RateLimited() && !s.limiter.Allow(c.ClientIP()) {
		metrics.RateLimitRejections.Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too Many Requests"})
		return
	}

	if c.Request.Method != http.MethodGet {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method Not Allowed"})
		return
	}

	if mode.Serial() {
		s.serial.Lock()
		defer s.serial.Unlock()
	}

	if s.workDelay > 0 {
		time.Sleep(s.workDelay)
	}

	s.servePath(c, c.Request.URL.Path)
}

// servePath resolves a request path inside the serve root and dispatches
// to file or directory handling.
func (s *Server) servePath(c *gin.Context, path string) {
	// Raw ".." anywhere in the request-target is refused outright, before
	// any normalization.
	if strings.Contains(path, "..") {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	full := filepath.Join(s.root, filepath.Clean("/"+path))
	if full != s.root && !strings.HasPrefix(full, s.root+string(os.PathSeparator)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	if info.IsDir() {
		// A request for the root serves index.html when one exists.
		index := filepath.Join(full, "index.html")
		if path == "/" {
			if _, err := os.Stat(index); err == nil {
				s.counter.Increment("/index.html")
				s.serveFile(c, index)
				return
			}
		}

		// Canonical counter path for a directory always ends with '/'.
		canon := path
		if !strings.HasSuffix(canon, "/") {
			canon += "/"
		}
		s.counter.Increment(canon)
		s.serveListing(c, full, canon)
		return
	}

	s.counter.Increment(path)
	s.serveFile(c, full)
}

// serveFile sends the file bytes with an inferred content type.
func (s *Server) serveFile(c *gin.Context, full string) {
	body, err := os.ReadFile(full)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	c.Data(http.StatusOK, contentType(full, body), body)
}

// contentType infers the MIME type: extension table first, then content
// sniffing.
func contentType(path string, body []byte) string {
	if t, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	if t := mimetype.Detect(body); t != nil {
		return t.String()
	}
	return "application/octet-stream"
}
