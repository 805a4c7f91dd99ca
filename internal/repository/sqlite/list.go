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

// CreateList inserts a custom list and fills in ID and CreatedAt.
func (s *queries) CreateList(ctx context.Context, list *model.CustomList) error {
	list.CreatedAt = time.Now().UTC()

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO custom_lists (user_id, name, description, created_at)
		 VALUES (?, ?, ?, ?)`,
		list.UserID,
		list.Name,
		list.Description,
		list.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting list %q: %w", list.Name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new list id: %w", err)
	}
	list.ID = id
	return nil
}

func (s *queries) GetList(ctx context.Context, id int64) (*model.CustomList, error) {
	var l model.CustomList

	err := s.q.QueryRowContext(ctx,
		`SELECT id, user_id, name, description, created_at
		 FROM custom_lists WHERE id = ?`,
		id,
	).Scan(&l.ID, &l.UserID, &l.Name, &l.Description, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("list", id)
		}
		return nil, fmt.Errorf("sqlite: getting list %d: %w", id, err)
	}

	return &l, nil
}

// ListListsByUser returns the user's custom lists, newest first.
func (s *queries) ListListsByUser(ctx context.Context, userID int64) ([]model.CustomList, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, user_id, name, description, created_at
		 FROM custom_lists WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing lists for user %d: %w", userID, err)
	}
	defer rows.Close()

	var lists []model.CustomList
	for rows.Next() {
		var l model.CustomList
		if err := rows.Scan(&l.ID, &l.UserID, &l.Name, &l.Description, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning list row: %w", err)
		}
		lists = append(lists, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating lists: %w", err)
	}
	return lists, nil
}

// DeleteList removes a list together with its memberships. The memberships are
// deleted explicitly because legacy databases added custom_list_id without a
// working cascade.
func (db *DB) DeleteList(ctx context.Context, id int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_movies WHERE custom_list_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting memberships of list %d: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM custom_lists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting list %d: %w", id, err)
	}
	if err := expectAffected(res, "list", id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing list delete: %w", err)
	}
	return nil
}
