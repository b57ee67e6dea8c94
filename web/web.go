// Package web holds the HTML page templates.
package web

import (
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var TemplateFS embed.FS

// Funcs are the helpers available to every page.
var Funcs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("2006-01-02 15:04")
	},
	"mb": func(n int64) int64 { return n >> 20 },
}

// Templates parses the embedded pages with Funcs.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(Funcs).ParseFS(TemplateFS, "templates/*.html")
}
