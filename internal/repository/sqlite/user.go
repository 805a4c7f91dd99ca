package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/drissi/moviespace/internal/apperror"
	"github.com/drissi/moviespace/internal/model"
)

// CreateUser inserts a new user and fills in ID and CreatedAt.
// A duplicate username or email is reported as apperror.ErrConflict.
func (s *queries) CreateUser(ctx context.Context, user *model.User) error {
	user.CreatedAt = time.Now().UTC()

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO users (username, email, hashed_password, created_at)
		 VALUES (?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.HashedPassword,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			field := "username"
			if strings.Contains(err.Error(), "users.email") {
				field = "email"
			}
			return apperror.Conflict(field, field+" is already in use")
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	user.ID = id
	return nil
}

func (s *queries) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *queries) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getUser(ctx, "username", username)
}

func (s *queries) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, "email", email)
}

// getUser looks a user up by one of its unique columns. column is never user
// input.
func (s *queries) getUser(ctx context.Context, column string, value any) (*model.User, error) {
	var u model.User

	err := s.q.QueryRowContext(ctx,
		`SELECT id, username, email, hashed_password, created_at
		 FROM users WHERE `+column+` = ?`,
		value,
	).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.HashedPassword,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}

	return &u, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
