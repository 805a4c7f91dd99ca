package handler

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/drissi/moviespace/internal/repository"
	"github.com/drissi/moviespace/internal/sitemap"
)

type SitemapHandler struct {
	movies  repository.MovieRepository
	baseURL string
	logger  *slog.Logger
}

func NewSitemapHandler(movies repository.MovieRepository, baseURL string, logger *slog.Logger) *SitemapHandler {
	return &SitemapHandler{movies: movies, baseURL: baseURL, logger: logger}
}

// HandleSitemap lists the static pages and every cached movie.
//
// HTTP: GET /sitemap.xml
func (h *SitemapHandler) HandleSitemap(w http.ResponseWriter, r *http.Request) {
	movies, err := h.movies.ListAllMovies(r.Context())
	if err != nil {
		h.logger.Error("sitemap: listing movies", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ids := make([]int64, len(movies))
	for i, m := range movies {
		ids[i] = m.TMDBID
	}

	var buf bytes.Buffer
	if err := sitemap.Write(&buf, sitemap.Build(h.baseURL, ids)); err != nil {
		h.logger.Error("sitemap: encoding", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	buf.WriteTo(w)
}
