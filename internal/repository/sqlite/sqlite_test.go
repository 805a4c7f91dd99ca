package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/drissi/moviespace/internal/apperror"
	"github.com/drissi/moviespace/internal/model"
)

// newTestDB opens a fresh database file in a per-test temp dir. A file is used
// rather than ":memory:" because every pooled connection must see the same data.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"), discardLogger())
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:       username,
		Email:          username + "@example.com",
		HashedPassword: "$2a$04$hash",
	}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func createTestMovie(t *testing.T, db *DB, tmdbID int64, title string) *model.MovieItem {
	t.Helper()
	movie := &model.MovieItem{TMDBID: tmdbID, Title: title, PosterPath: "/p.jpg"}
	if err := db.CreateMovie(context.Background(), movie); err != nil {
		t.Fatalf("failed to create test movie: %v", err)
	}
	return movie
}

// =========================================================================
// MIGRATIONS
// =========================================================================

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")

	first, err := New(path, discardLogger())
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	createTestUser(t, first, "alice")
	first.Close()

	second, err := New(path, discardLogger())
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer second.Close()

	if _, err := second.GetUserByUsername(context.Background(), "alice"); err != nil {
		t.Errorf("user lost across reopen: %v", err)
	}
}

func TestNew_AddsCustomListColumnToLegacyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	_, err = raw.Exec(`CREATE TABLE user_movies (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id  INTEGER NOT NULL,
		movie_id INTEGER NOT NULL,
		status   TEXT NOT NULL,
		added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	raw.Close()
	if err != nil {
		t.Fatalf("creating legacy table: %v", err)
	}

	db, err := New(path, discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	var count int
	err = db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info('user_movies') WHERE name = 'custom_list_id'`,
	).Scan(&count)
	if err != nil {
		t.Fatalf("reading table info: %v", err)
	}
	if count != 1 {
		t.Errorf("custom_list_id column count = %d, want 1", count)
	}
}

// =========================================================================
// USERS
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")

	if user.ID == 0 {
		t.Error("CreateUser() did not set ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreateUser() did not set CreatedAt")
	}

	got, err := db.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Username != "alice" || got.Email != "alice@example.com" {
		t.Errorf("GetUserByID() = %+v", got)
	}
}

func TestCreateUser_Duplicates(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	tests := []struct {
		name      string
		user      model.User
		wantField string
	}{
		{"same username", model.User{Username: "alice", Email: "other@example.com", HashedPassword: "x"}, "username"},
		{"same email", model.User{Username: "bob", Email: "alice@example.com", HashedPassword: "x"}, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.CreateUser(context.Background(), &tt.user)
			if !errors.Is(err, apperror.ErrConflict) {
				t.Fatalf("CreateUser() error = %v, want ErrConflict", err)
			}
			if got := apperror.FieldOf(err); got != tt.wantField {
				t.Errorf("FieldOf() = %q, want %q", got, tt.wantField)
			}
		})
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.GetUserByUsername(ctx, "ghost"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByUsername() error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetUserByEmail(ctx, "ghost@example.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByEmail() error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetUserByID(ctx, 999); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// MOVIES
// =========================================================================

func TestMovies(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	createTestMovie(t, db, 603, "The Matrix")
	createTestMovie(t, db, 550, "Fight Club")

	got, err := db.GetMovieByTMDBID(ctx, 550)
	if err != nil {
		t.Fatalf("GetMovieByTMDBID() error = %v", err)
	}
	if got.Title != "Fight Club" {
		t.Errorf("Title = %q, want %q", got.Title, "Fight Club")
	}

	if _, err := db.GetMovieByTMDBID(ctx, 1); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetMovieByTMDBID(missing) error = %v, want ErrNotFound", err)
	}

	dup := &model.MovieItem{TMDBID: 603, Title: "Again"}
	if err := db.CreateMovie(ctx, dup); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("CreateMovie(duplicate) error = %v, want ErrConflict", err)
	}

	all, err := db.ListAllMovies(ctx)
	if err != nil {
		t.Fatalf("ListAllMovies() error = %v", err)
	}
	if len(all) != 2 || all[0].TMDBID != 603 || all[1].TMDBID != 550 {
		t.Errorf("ListAllMovies() = %+v, want [603 550] in insertion order", all)
	}
}

// =========================================================================
// TRANSACTIONS
// =========================================================================

func TestTx_RollbackDiscardsWrites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if err := tx.CreateMovie(ctx, &model.MovieItem{TMDBID: 1, Title: "Gone"}); err != nil {
		t.Fatalf("CreateMovie() in tx error = %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	// A second rollback is a no-op.
	if err := tx.Rollback(); err != nil {
		t.Errorf("second Rollback() error = %v", err)
	}

	if _, err := db.GetMovieByTMDBID(ctx, 1); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("movie visible after rollback: err = %v", err)
	}
}

func TestTx_CommitPersistsWrites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")

	tx, err := db.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	movie := &model.MovieItem{TMDBID: 27205, Title: "Inception"}
	if err := tx.CreateMovie(ctx, movie); err != nil {
		t.Fatalf("CreateMovie() error = %v", err)
	}
	um := &model.UserMovie{UserID: user.ID, MovieID: movie.ID, Status: model.StatusWatched}
	if err := tx.CreateMembership(ctx, um); err != nil {
		t.Fatalf("CreateMembership() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	watched, err := db.ListByStatus(ctx, user.ID, model.StatusWatched, 20)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(watched) != 1 || watched[0].Movie.Title != "Inception" {
		t.Errorf("ListByStatus() = %+v, want Inception", watched)
	}
}
