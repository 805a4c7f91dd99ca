package service

import (
	"context"
	"errors"

	"github.com/drissi/moviespace/internal/apperror"
	"github.com/drissi/moviespace/internal/model"
	"github.com/drissi/moviespace/internal/repository"
	"github.com/drissi/moviespace/internal/tmdb"
)

// MovieProvider is the external movie database. Methods return empty results
// when the provider fails; *tmdb.Client implements it.
type MovieProvider interface {
	Popular(ctx context.Context) []tmdb.Movie
	NowPlaying(ctx context.Context) []tmdb.Movie
	Movie(ctx context.Context, id int64) (*tmdb.Movie, bool)
	Trailer(ctx context.Context, id int64) string
	Genres(ctx context.Context) []tmdb.Genre
	SearchMovies(ctx context.Context, query, year string) []tmdb.Movie
	Discover(ctx context.Context, f tmdb.DiscoverFilter) []tmdb.Movie
}

var _ MovieProvider = (*tmdb.Client)(nil)

// ensureMovie returns the cached row for m, creating it on first reference.
// An existing row is returned as is, even if m's title or poster changed.
func ensureMovie(ctx context.Context, repo repository.MovieRepository, m tmdb.Movie) (*model.MovieItem, error) {
	item, err := repo.GetMovieByTMDBID(ctx, m.ID)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	item = &model.MovieItem{TMDBID: m.ID, Title: m.Title, PosterPath: m.PosterPath}
	if err := repo.CreateMovie(ctx, item); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return repo.GetMovieByTMDBID(ctx, m.ID)
		}
		return nil, err
	}
	return item, nil
}
