package fileserver

import (
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

// listingEntry is one row of a directory listing.
type listingEntry struct {
	Name  string
	Href  string
	IsDir bool
	Hits  int
	Size  string
}

// listingData feeds the listing template.
type listingData struct {
	Path    string
	Parent  string
	Entries []listingEntry
}

var listingTmpl = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Index of {{.Path}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
       margin: 0; padding: 40px; background: #111827; color: #F9FAFB; }
.container { max-width: 900px; margin: 0 auto; background: rgba(255,255,255,0.05);
             border: 1px solid rgba(255,255,255,0.1); border-radius: 16px; padding: 32px; }
h1 { font-size: 28px; border-bottom: 1px solid rgba(255,255,255,0.2);
     padding-bottom: 16px; margin: 0 0 24px 0; word-wrap: break-word; }
table { width: 100%; border-collapse: collapse; }
th, td { padding: 12px 8px; text-align: left; border-bottom: 1px solid rgba(255,255,255,0.1); }
th { color: #D1D5DB; font-size: 14px; font-weight: 500; }
a { text-decoration: none; color: #A5B4FC; font-weight: 500; }
a:hover { color: #C7D2FE; text-decoration: underline; }
.parent-link { font-weight: 600; color: #E5E7EB; margin-bottom: 16px; display: inline-block; }
.hits, .size { color: #9CA3AF; font-size: 14px; text-align: right; padding-right: 15px; }
</style>
</head>
<body>
<div class="container">
<h1>Index of {{.Path}}</h1>
{{if .Parent}}<a href="{{.Parent}}" class="parent-link">Parent Directory</a>{{end}}
<table>
<thead><tr><th>Name</th><th class="hits">Hits</th><th class="size">Size</th></tr></thead>
<tbody>
{{range .Entries}}<tr><td><a href="{{.Href}}">{{.Name}}</a></td><td class="hits">{{.Hits}}</td><td class="size">{{.Size}}</td></tr>
{{end}}</tbody>
</table>
</div>
</body>
</html>`))

// serveListing renders the directory listing for full, with per-entry hit
// counts. urlPath is the canonical request path and always ends with '/'.
func (s *Server) serveListing(c *gin.Context, full, urlPath string) {
	dirEntries, err := os.ReadDir(full)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	sort.Slice(dirEntries, func(i, j int) bool { return dirEntries[i].Name() < dirEntries[j].Name() })

	data := listingData{Path: urlPath}
	if urlPath != "/" {
		parent := "/"
		if idx := strings.LastIndex(strings.TrimSuffix(urlPath, "/"), "/"); idx > 0 {
			parent = urlPath[:idx+1]
		}
		data.Parent = parent
	}

	// Directories first, then files, both alphabetical.
	for _, e := range dirEntries {
		if !e.IsDir() {
			continue
		}
		entryPath := urlPath + e.Name() + "/"
		data.Entries = append(data.Entries, listingEntry{
			Name:  e.Name() + "/",
			Href:  entryPath,
			IsDir: true,
			Hits:  s.counter.Get(entryPath),
			Size:  "-",
		})
	}
	for _, e := range dirEntries {
		if e.IsDir() {
			continue
		}
		size := "-"
		if info, err := os.Stat(filepath.Join(full, e.Name())); err == nil {
			size = formatSize(info.Size())
		}
		entryPath := urlPath + e.Name()
		data.Entries = append(data.Entries, listingEntry{
			Name: e.Name(),
			Href: entryPath,
			Hits: s.counter.Get(entryPath),
			Size: size,
		})
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := listingTmpl.Execute(c.Writer, data); err != nil {
		// Headers are gone at this point; nothing to do but log via gin.
		_ = c.Error(err)
	}
}

// formatSize renders a byte count in human-readable form.
func formatSize(size int64) string {
	f := float64(size)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if f < 1024.0 {
			if unit == "B" {
				return fmt.Sprintf("%.0f %s", f, unit)
			}
			return fmt.Sprintf("%.1f %s", f, unit)
		}
		f /= 1024.0
	}
	return fmt.Sprintf("%.1f TB", f)
}
