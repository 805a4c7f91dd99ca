// Package handler contains the HTTP handlers. Handlers parse the request,
// call one service and either render a template or redirect.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/drissi/moviespace/internal/auth"
	"github.com/drissi/moviespace/internal/model"
	"github.com/drissi/moviespace/internal/service"
)

// Pages are rendered as base.html plus one page template defining "content".
var pageNames = []string{
	"index",
	"search",
	"movie_detail",
	"profile",
	"login",
	"register",
	"lists",
	"list_detail",
	"import",
	"error",
}

// view is the value every template receives.
type view struct {
	Title  string
	User   *model.User
	Notice string
	Error  string
	Data   any
}

// Renderer holds the parsed page templates.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer parses templates/base.html and every page from fsys.
// imageBaseURL prefixes poster paths.
func NewRenderer(fsys fs.FS, imageBaseURL string, logger *slog.Logger) (*Renderer, error) {
	funcs := template.FuncMap{
		"poster":   posterURL(imageBaseURL),
		"sortKeys": func() []string { return service.SortKeys },
		"add":      func(a, b int) int { return a + b },
		"sub":      func(a, b int) int { return a - b },
	}

	base, err := template.New("").Funcs(funcs).ParseFS(fsys, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("handler: parsing base template: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("handler: cloning base for %s: %w", name, err)
		}
		if _, err := t.ParseFS(fsys, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("handler: parsing %s: %w", name, err)
		}
		pages[name] = t
	}

	return &Renderer{pages: pages, logger: logger}, nil
}

func posterURL(imageBaseURL string) func(string) string {
	base := strings.TrimRight(imageBaseURL, "/")
	return func(path string) string {
		switch {
		case path == "":
			return ""
		case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
			return path
		default:
			return base + "/" + strings.TrimLeft(path, "/")
		}
	}
}

// page renders the named page with the signed-in user filled in. Output is
// buffered so a template error still produces a clean 500.
func (rd *Renderer) page(w http.ResponseWriter, r *http.Request, status int, name string, v view) {
	t, ok := rd.pages[name]
	if !ok {
		rd.logger.Error("unknown template", slog.String("template", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	v.User, _ = auth.UserFromContext(r.Context())

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", v); err != nil {
		rd.logger.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		rd.logger.Debug("client went away", slog.String("error", err.Error()))
	}
}
