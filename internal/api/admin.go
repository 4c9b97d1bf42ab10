// Package api provides the admin dashboard handler.
package api

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"
)

var adminTemplate = template.Must(template.New("admin").Parse(`<!DOCTYPE html>
<html>
<head>
<title>gpt-enduser</title>
<style>
body { font-family: monospace; max-width: 48em; margin: 2em auto; }
h1 { font-size: 1.2em; }
li { margin: 0.3em 0; }
.muted { color: #777; }
</style>
</head>
<body>
<h1>gpt-enduser</h1>
<p>Last post: {{if .LastPostAt}}{{.LastPostAt.Format "2006-01-02 15:04:05 MST"}}{{else}}<span class="muted">never</span>{{end}}</p>
<h2>Journal</h2>
{{if .Journal}}
<ul>
{{range .Journal}}<li>{{.}}</li>
{{end}}</ul>
{{else}}<p class="muted">empty</p>{{end}}
</body>
</html>
`))

type adminView struct {
	LastPostAt *time.Time
	Journal    []string
}

func (s *Server) adminHandler(w http.ResponseWriter, r *http.Request) {
	var view adminView

	last, ok, err := s.gate.LastPostAt(r.Context())
	if err == nil && ok {
		view.LastPostAt = &last
	}
	entries, err := s.journal.Entries(r.Context())
	if err == nil {
		view.Journal = entries
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := adminTemplate.Execute(w, view); err != nil {
		slog.Error("Server.adminHandler: failed to render dashboard", "error", err)
	}
}
