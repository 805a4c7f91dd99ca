package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/drissi/moviespace/internal/apperror"
	"github.com/drissi/moviespace/internal/model"
)

// GetMovieByTMDBID returns the cached row for an external movie id.
func (s *queries) GetMovieByTMDBID(ctx context.Context, tmdbID int64) (*model.MovieItem, error) {
	var m model.MovieItem

	err := s.q.QueryRowContext(ctx,
		`SELECT id, tmdb_id, title, poster_path, added_at
		 FROM movie_items WHERE tmdb_id = ?`,
		tmdbID,
	).Scan(&m.ID, &m.TMDBID, &m.Title, &m.PosterPath, &m.AddedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("movie", tmdbID)
		}
		return nil, fmt.Errorf("sqlite: getting movie %d: %w", tmdbID, err)
	}

	return &m, nil
}

// CreateMovie caches a movie and fills in ID and AddedAt.
func (s *queries) CreateMovie(ctx context.Context, movie *model.MovieItem) error {
	movie.AddedAt = time.Now().UTC()

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO movie_items (tmdb_id, title, poster_path, added_at)
		 VALUES (?, ?, ?, ?)`,
		movie.TMDBID,
		movie.Title,
		movie.PosterPath,
		movie.AddedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("tmdb_id", fmt.Sprintf("movie %d is already cached", movie.TMDBID))
		}
		return fmt.Errorf("sqlite: caching movie %d: %w", movie.TMDBID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new movie id: %w", err)
	}
	movie.ID = id
	return nil
}

// ListAllMovies returns every cached movie ordered by id.
func (s *queries) ListAllMovies(ctx context.Context) ([]model.MovieItem, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, tmdb_id, title, poster_path, added_at
		 FROM movie_items ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing movies: %w", err)
	}
	defer rows.Close()

	var movies []model.MovieItem
	for rows.Next() {
		var m model.MovieItem
		if err := rows.Scan(&m.ID, &m.TMDBID, &m.Title, &m.PosterPath, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning movie row: %w", err)
		}
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating movies: %w", err)
	}

	return movies, nil
}
