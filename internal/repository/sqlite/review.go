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

func (s *queries) GetReview(ctx context.Context, userID, tmdbID int64) (*model.Review, error) {
	var r model.Review

	err := s.q.QueryRowContext(ctx,
		`SELECT id, user_id, tmdb_id, rating, review_text, created_at, updated_at
		 FROM reviews WHERE user_id = ? AND tmdb_id = ?
		 ORDER BY id LIMIT 1`,
		userID, tmdbID,
	).Scan(&r.ID, &r.UserID, &r.TMDBID, &r.Rating, &r.ReviewText, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("review", tmdbID)
		}
		return nil, fmt.Errorf("sqlite: getting review (user=%d, movie=%d): %w", userID, tmdbID, err)
	}

	return &r, nil
}

// CreateReview inserts a review. A second review for the same user and movie
// violates idx_reviews_user_tmdb and is reported as apperror.ErrConflict.
func (s *queries) CreateReview(ctx context.Context, review *model.Review) error {
	now := time.Now().UTC()
	review.CreatedAt = now
	review.UpdatedAt = now

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO reviews (user_id, tmdb_id, rating, review_text, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		review.UserID,
		review.TMDBID,
		review.Rating,
		review.ReviewText,
		review.CreatedAt,
		review.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("review", "you have already reviewed this movie")
		}
		return fmt.Errorf("sqlite: inserting review (user=%d, movie=%d): %w", review.UserID, review.TMDBID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new review id: %w", err)
	}
	review.ID = id
	return nil
}

// UpdateReview rewrites rating and text in place and bumps UpdatedAt.
func (s *queries) UpdateReview(ctx context.Context, review *model.Review) error {
	review.UpdatedAt = time.Now().UTC()

	res, err := s.q.ExecContext(ctx,
		`UPDATE reviews SET rating = ?, review_text = ?, updated_at = ? WHERE id = ?`,
		review.Rating,
		review.ReviewText,
		review.UpdatedAt,
		review.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating review %d: %w", review.ID, err)
	}
	return expectAffected(res, "review", review.ID)
}

// ListReviewsForMovie returns every local review of a movie with the author's
// username, newest first.
func (s *queries) ListReviewsForMovie(ctx context.Context, tmdbID int64) ([]model.ReviewWithAuthor, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT r.id, r.user_id, r.tmdb_id, r.rating, r.review_text, r.created_at, r.updated_at,
		        u.username
		 FROM reviews r
		 JOIN users u ON u.id = r.user_id
		 WHERE r.tmdb_id = ?
		 ORDER BY r.created_at DESC, r.id DESC`,
		tmdbID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reviews for movie %d: %w", tmdbID, err)
	}
	defer rows.Close()

	var out []model.ReviewWithAuthor
	for rows.Next() {
		var r model.ReviewWithAuthor
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.TMDBID, &r.Rating, &r.ReviewText, &r.CreatedAt, &r.UpdatedAt,
			&r.Username,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning review row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating reviews: %w", err)
	}
	return out, nil
}

// ListRecentReviewsWithMovies returns the user's most recent reviews whose
// movie is cached locally. Reviews of uncached movies are left out.
func (s *queries) ListRecentReviewsWithMovies(ctx context.Context, userID int64, limit int) ([]model.ReviewWithMovie, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT r.id, r.user_id, r.tmdb_id, r.rating, r.review_text, r.created_at, r.updated_at,
		        m.id, m.tmdb_id, m.title, m.poster_path, m.added_at
		 FROM reviews r
		 JOIN movie_items m ON m.tmdb_id = r.tmdb_id
		 WHERE r.user_id = ?
		 ORDER BY r.created_at DESC, r.id DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recent reviews for user %d: %w", userID, err)
	}
	defer rows.Close()

	var out []model.ReviewWithMovie
	for rows.Next() {
		var rm model.ReviewWithMovie
		r, m := &rm.Review, &rm.Movie
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.TMDBID, &r.Rating, &r.ReviewText, &r.CreatedAt, &r.UpdatedAt,
			&m.ID, &m.TMDBID, &m.Title, &m.PosterPath, &m.AddedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning review row: %w", err)
		}
		out = append(out, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating reviews: %w", err)
	}
	return out, nil
}
