// Package sqlite implements the repository interfaces on a single SQLite file
// using the pure-Go modernc.org/sqlite driver through database/sql.
//
// Every query is written once against the querier interface, which *sql.DB and
// *sql.Tx both satisfy. DB runs them on the connection pool; Tx runs them inside
// one transaction (used by the import job to batch its writes).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/drissi/moviespace/internal/repository"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// querier is the query surface shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the implementation of every repository method that can run
// either on the pool or inside a transaction.
type queries struct {
	q querier
}

// DB wraps a sql.DB connection pool.
type DB struct {
	*queries
	conn   *sql.DB
	logger *slog.Logger
}

// Tx is a transaction opened by DB.BeginTx.
type Tx struct {
	*queries
	tx *sql.Tx
}

var (
	_ repository.UserRepository      = (*DB)(nil)
	_ repository.MovieRepository     = (*DB)(nil)
	_ repository.UserMovieRepository = (*DB)(nil)
	_ repository.ReviewRepository    = (*DB)(nil)
	_ repository.ListRepository      = (*DB)(nil)
	_ repository.ImportJobRepository = (*DB)(nil)
	_ repository.Transactor          = (*DB)(nil)
	_ repository.Tx                  = (*Tx)(nil)
)

// New opens (creating if needed) the database at dbPath and runs migrations.
//
// Connection-level PRAGMAs are passed through the DSN so that every pooled
// connection gets them, not just the first one.
func New(dbPath string, logger *slog.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{
		queries: &queries{q: conn},
		conn:    conn,
		logger:  logger,
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep +
		"_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)"
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// BeginTx starts a transaction. The caller must Commit or Rollback it.
func (db *DB) BeginTx(ctx context.Context) (repository.Tx, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	return &Tx{queries: &queries{q: tx}, tx: tx}, nil
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back an already finished
// transaction is not an error.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("sqlite: rolling back transaction: %w", err)
	}
	return nil
}

// migrate brings the schema up to date. It runs on every startup and must be
// idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			username        TEXT NOT NULL UNIQUE,
			email           TEXT NOT NULL UNIQUE,
			hashed_password TEXT NOT NULL,
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS movie_items (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			tmdb_id     INTEGER NOT NULL UNIQUE,
			title       TEXT NOT NULL,
			poster_path TEXT NOT NULL DEFAULT '',
			added_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS custom_lists (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_custom_lists_user_id ON custom_lists(user_id);

		CREATE TABLE IF NOT EXISTS user_movies (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			movie_id INTEGER NOT NULL REFERENCES movie_items(id) ON DELETE CASCADE,
			status   TEXT NOT NULL,
			added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS reviews (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			tmdb_id     INTEGER NOT NULL,
			rating      REAL NOT NULL,
			review_text TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_reviews_tmdb_id ON reviews(tmdb_id);

		CREATE TABLE IF NOT EXISTS import_jobs (
			id            TEXT PRIMARY KEY,
			user_id       INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			source        TEXT NOT NULL,
			target        TEXT NOT NULL,
			status        TEXT NOT NULL,
			total_rows    INTEGER NOT NULL DEFAULT 0,
			imported      INTEGER NOT NULL DEFAULT 0,
			skipped       INTEGER NOT NULL DEFAULT 0,
			errors        INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			finished_at   DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_import_jobs_user_id ON import_jobs(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}

	// Databases created before custom lists existed lack this column.
	if err := db.addColumnIfNotExists("user_movies", "custom_list_id",
		"INTEGER REFERENCES custom_lists(id) ON DELETE CASCADE"); err != nil {
		return fmt.Errorf("adding custom_list_id to user_movies: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_user_movies_user_movie ON user_movies(user_id, movie_id);
		CREATE INDEX IF NOT EXISTS idx_user_movies_list ON user_movies(custom_list_id);
	`)
	if err != nil {
		return fmt.Errorf("creating user_movies indexes: %w", err)
	}

	// One review per (user, movie). Older databases may already hold
	// duplicates, in which case the index cannot be built and the rule is
	// enforced by ReviewService alone.
	if _, err := db.conn.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reviews_user_tmdb ON reviews(user_id, tmdb_id)`,
	); err != nil {
		db.logger.Warn("could not enforce one review per user and movie",
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	db.logger.Info("migrating database: adding column",
		slog.String("table", table),
		slog.String("column", column),
	)
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}
