package handler

import (
	"log/slog"
	"net/http"

	"github.com/drissi/moviespace/internal/service"
)

// CatalogHandler serves the public browsing pages.
type CatalogHandler struct {
	catalog  *service.CatalogService
	renderer *Renderer
	logger   *slog.Logger
}

func NewCatalogHandler(catalog *service.CatalogService, renderer *Renderer, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, renderer: renderer, logger: logger}
}

// HTTP: GET /
func (h *CatalogHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	h.renderer.page(w, r, http.StatusOK, "index", view{Data: h.catalog.Home(r.Context())})
}

// HTTP: GET /search?query&genre&year&language&sort_by
func (h *CatalogHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := h.catalog.Search(r.Context(), service.SearchQuery{
		Query:    q.Get("query"),
		Genre:    q.Get("genre"),
		Year:     q.Get("year"),
		Language: q.Get("language"),
		SortBy:   q.Get("sort_by"),
	})
	h.renderer.page(w, r, http.StatusOK, "search", view{Title: "Search", Data: res})
}

// HTTP: GET /movie/{id}
func (h *CatalogHandler) HandleMovie(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "movie")
	if err != nil {
		h.renderer.Error(w, r, err)
		return
	}

	detail, err := h.catalog.MovieDetail(r.Context(), id, currentUser(r))
	if err != nil {
		h.renderer.Error(w, r, err)
		return
	}
	h.renderer.page(w, r, http.StatusOK, "movie_detail", view{Title: detail.Movie.Title, Data: detail})
}
