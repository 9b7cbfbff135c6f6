// Package web holds the server-rendered HTML page.
package web

import (
	"embed"
	"encoding/base64"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// maxPreviewBytes bounds images inlined as thumbnails.
const maxPreviewBytes = 8 << 20

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashWarning = "warning"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash is an inline message shown above the page content.
type Flash struct {
	Kind    string
	Message string
}

// ResultGroup is the rows produced by one receipt.
type ResultGroup struct {
	ID     string
	Source string
	Rows   [][]string
}

// Page is the data rendered by index.html.
type Page struct {
	Provider     string
	Ready        bool
	Maintenance  bool
	ConfigError  string
	Missing      []string
	TemplateName string
	Columns      []string
	Layout       string
	Groups       []ResultGroup
	RowCount     int
	Flashes      []Flash
	PreviewURL   template.URL
	PreviewName  string
	MaxUploadMB  int64
}

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

// MustTemplates is like Templates but panics on error.
func MustTemplates() *template.Template {
	return template.Must(Templates())
}

// Preview returns a data URI showing image as a thumbnail, or "" when the
// upload is not an inlinable image.
func Preview(contentType string, image []byte) template.URL {
	if !strings.HasPrefix(contentType, "image/") || len(image) == 0 || len(image) > maxPreviewBytes {
		return ""
	}
	switch contentType {
	case "image/jpeg", "image/png", "image/bmp":
	default:
		return ""
	}
	return template.URL("data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image))
}
