// Package repository declares the storage interfaces the service layer depends on.
// internal/repository/sqlite provides the implementation.
package repository

import (
	"context"
	"time"

	"github.com/drissi/moviespace/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

type MovieRepository interface {
	GetMovieByTMDBID(ctx context.Context, tmdbID int64) (*model.MovieItem, error)
	CreateMovie(ctx context.Context, movie *model.MovieItem) error
	ListAllMovies(ctx context.Context) ([]model.MovieItem, error)
}

// UserMovieRepository manages list memberships. A nil listID addresses the
// user's watch-status row for a movie; a non-nil listID addresses the
// membership in that custom list.
type UserMovieRepository interface {
	FindMembership(ctx context.Context, userID, movieID int64, listID *int64) (*model.UserMovie, error)
	CreateMembership(ctx context.Context, um *model.UserMovie) error
	UpdateMembershipStatus(ctx context.Context, id int64, status model.WatchStatus) error
	DeleteMembership(ctx context.Context, id int64) error
	ListByStatus(ctx context.Context, userID int64, status model.WatchStatus, limit int) ([]model.ListedMovie, error)
	ListByCustomList(ctx context.Context, listID int64, opts ListOptions) ([]model.ListedMovie, error)
	CountByCustomList(ctx context.Context, listID int64) (int, error)
}

type ReviewRepository interface {
	GetReview(ctx context.Context, userID, tmdbID int64) (*model.Review, error)
	CreateReview(ctx context.Context, review *model.Review) error
	UpdateReview(ctx context.Context, review *model.Review) error
	ListReviewsForMovie(ctx context.Context, tmdbID int64) ([]model.ReviewWithAuthor, error)
	ListRecentReviewsWithMovies(ctx context.Context, userID int64, limit int) ([]model.ReviewWithMovie, error)
}

type ListRepository interface {
	CreateList(ctx context.Context, list *model.CustomList) error
	GetList(ctx context.Context, id int64) (*model.CustomList, error)
	ListListsByUser(ctx context.Context, userID int64) ([]model.CustomList, error)
	// DeleteList removes the list and all of its memberships.
	DeleteList(ctx context.Context, id int64) error
}

type ImportJobRepository interface {
	CreateImportJob(ctx context.Context, job *model.ImportJob) error
	GetImportJob(ctx context.Context, id string) (*model.ImportJob, error)
	UpdateImportJob(ctx context.Context, job *model.ImportJob) error
	ListImportJobsByUser(ctx context.Context, userID int64, limit int) ([]model.ImportJob, error)
	// FailUnfinishedImportJobs moves every pending or running job to failed
	// with message and reports how many changed.
	FailUnfinishedImportJobs(ctx context.Context, message string, at time.Time) (int64, error)
}

// Tx is the subset of storage an import batch writes through. Changes are
// visible to other connections only after Commit.
type Tx interface {
	MovieRepository
	UserMovieRepository
	Commit() error
	Rollback() error
}

type Transactor interface {
	BeginTx(ctx context.Context) (Tx, error)
}
