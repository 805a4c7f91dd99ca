package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/drissi/moviespace/internal/apperror"
	"github.com/drissi/moviespace/internal/model"
	"github.com/drissi/moviespace/internal/repository"
)

const listedMovieColumns = `
	um.id, um.user_id, um.movie_id, um.status, um.custom_list_id, um.added_at,
	m.id, m.tmdb_id, m.title, m.poster_path, m.added_at`

// FindMembership returns the user's membership for movieID in the custom list
// listID, or the watch-status row when listID is nil. When several rows match
// (possible after concurrent imports) the oldest one wins.
func (s *queries) FindMembership(ctx context.Context, userID, movieID int64, listID *int64) (*model.UserMovie, error) {
	query := `SELECT id, user_id, movie_id, status, custom_list_id, added_at
		 FROM user_movies
		 WHERE user_id = ? AND movie_id = ? AND custom_list_id IS NULL
		 ORDER BY id LIMIT 1`
	args := []any{userID, movieID}
	if listID != nil {
		query = `SELECT id, user_id, movie_id, status, custom_list_id, added_at
		 FROM user_movies
		 WHERE user_id = ? AND movie_id = ? AND custom_list_id = ?
		 ORDER BY id LIMIT 1`
		args = append(args, *listID)
	}

	var um model.UserMovie
	var customListID sql.NullInt64
	err := s.q.QueryRowContext(ctx, query, args...).Scan(
		&um.ID, &um.UserID, &um.MovieID, &um.Status, &customListID, &um.AddedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("list membership", movieID)
		}
		return nil, fmt.Errorf("sqlite: finding membership (user=%d, movie=%d): %w", userID, movieID, err)
	}
	um.CustomListID = nullableID(customListID)

	return &um, nil
}

// CreateMembership inserts a list membership and fills in ID and AddedAt.
func (s *queries) CreateMembership(ctx context.Context, um *model.UserMovie) error {
	um.AddedAt = time.Now().UTC()

	var customListID sql.NullInt64
	if um.CustomListID != nil {
		customListID = sql.NullInt64{Int64: *um.CustomListID, Valid: true}
	}

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO user_movies (user_id, movie_id, status, custom_list_id, added_at)
		 VALUES (?, ?, ?, ?, ?)`,
		um.UserID,
		um.MovieID,
		um.Status,
		customListID,
		um.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting membership (user=%d, movie=%d): %w", um.UserID, um.MovieID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new membership id: %w", err)
	}
	um.ID = id
	return nil
}

func (s *queries) UpdateMembershipStatus(ctx context.Context, id int64, status model.WatchStatus) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE user_movies SET status = ? WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating membership %d: %w", id, err)
	}
	return expectAffected(res, "list membership", id)
}

func (s *queries) DeleteMembership(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM user_movies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting membership %d: %w", id, err)
	}
	return expectAffected(res, "list membership", id)
}

// ListByStatus returns up to limit of the user's watch-status rows with the
// given status, oldest first.
func (s *queries) ListByStatus(ctx context.Context, userID int64, status model.WatchStatus, limit int) ([]model.ListedMovie, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+listedMovieColumns+`
		 FROM user_movies um
		 JOIN movie_items m ON m.id = um.movie_id
		 WHERE um.user_id = ? AND um.status = ? AND um.custom_list_id IS NULL
		 ORDER BY um.id
		 LIMIT ?`,
		userID, status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s movies for user %d: %w", status, userID, err)
	}
	return scanListedMovies(rows)
}

// ListByCustomList returns one page of a custom list's movies in insertion order.
func (s *queries) ListByCustomList(ctx context.Context, listID int64, opts repository.ListOptions) ([]model.ListedMovie, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+listedMovieColumns+`
		 FROM user_movies um
		 JOIN movie_items m ON m.id = um.movie_id
		 WHERE um.custom_list_id = ?
		 ORDER BY um.id
		 LIMIT ? OFFSET ?`,
		listID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing movies of list %d: %w", listID, err)
	}
	return scanListedMovies(rows)
}

func (s *queries) CountByCustomList(ctx context.Context, listID int64) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_movies WHERE custom_list_id = ?`, listID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting movies of list %d: %w", listID, err)
	}
	return n, nil
}

func scanListedMovies(rows *sql.Rows) ([]model.ListedMovie, error) {
	defer rows.Close()

	var out []model.ListedMovie
	for rows.Next() {
		var lm model.ListedMovie
		var customListID sql.NullInt64
		if err := rows.Scan(
			&lm.Membership.ID, &lm.Membership.UserID, &lm.Membership.MovieID,
			&lm.Membership.Status, &customListID, &lm.Membership.AddedAt,
			&lm.Movie.ID, &lm.Movie.TMDBID, &lm.Movie.Title, &lm.Movie.PosterPath, &lm.Movie.AddedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning listed movie: %w", err)
		}
		lm.Membership.CustomListID = nullableID(customListID)
		out = append(out, lm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating listed movies: %w", err)
	}
	return out, nil
}

func nullableID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

// expectAffected turns a zero-row UPDATE or DELETE into a NotFound error.
func expectAffected(res sql.Result, resource string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
