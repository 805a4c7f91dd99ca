package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/drissi/moviespace/internal/apperror"
	"github.com/drissi/moviespace/internal/model"
	"github.com/drissi/moviespace/internal/repository"
	"github.com/drissi/moviespace/internal/validation"
)

const (
	PerPage        = 20
	ProfileLimit   = 20
	ProfileReviews = 10
	ListPreview    = 4
)

// LibraryService manages what a user keeps: the watchlist/watched status of
// each movie, custom lists and the profile page built from them.
type LibraryService struct {
	provider MovieProvider
	movies   repository.MovieRepository
	members  repository.UserMovieRepository
	reviews  repository.ReviewRepository
	lists    repository.ListRepository
	logger   *slog.Logger
}

func NewLibraryService(
	provider MovieProvider,
	movies repository.MovieRepository,
	members repository.UserMovieRepository,
	reviews repository.ReviewRepository,
	lists repository.ListRepository,
	logger *slog.Logger,
) *LibraryService {
	return &LibraryService{
		provider: provider,
		movies:   movies,
		members:  members,
		reviews:  reviews,
		lists:    lists,
		logger:   logger,
	}
}

// cacheMovie fetches tmdbID from the provider and makes sure it is cached.
func (s *LibraryService) cacheMovie(ctx context.Context, tmdbID int64) (*model.MovieItem, error) {
	movie, ok := s.provider.Movie(ctx, tmdbID)
	if !ok {
		return nil, apperror.NotFound("movie", tmdbID)
	}
	item, err := ensureMovie(ctx, s.movies, *movie)
	if err != nil {
		return nil, fmt.Errorf("service/library: caching movie %d: %w", tmdbID, err)
	}
	return item, nil
}

// SetStatus puts a movie on the user's watchlist or watched list. A movie has
// at most one status, so calling it again replaces the previous status.
func (s *LibraryService) SetStatus(ctx context.Context, userID, tmdbID int64, status string) error {
	ws := model.WatchStatus(strings.TrimSpace(status))
	if !ws.IsPredefined() {
		return apperror.ValidationFailed("status", "status must be watchlist or watched")
	}

	item, err := s.cacheMovie(ctx, tmdbID)
	if err != nil {
		return err
	}

	existing, err := s.members.FindMembership(ctx, userID, item.ID, nil)
	switch {
	case err == nil:
		if existing.Status == ws {
			return nil
		}
		if err := s.members.UpdateMembershipStatus(ctx, existing.ID, ws); err != nil {
			return fmt.Errorf("service/library: updating status of movie %d: %w", tmdbID, err)
		}
	case errors.Is(err, apperror.ErrNotFound):
		um := &model.UserMovie{UserID: userID, MovieID: item.ID, Status: ws}
		if err := s.members.CreateMembership(ctx, um); err != nil {
			return fmt.Errorf("service/library: adding movie %d: %w", tmdbID, err)
		}
	default:
		return fmt.Errorf("service/library: looking up status of movie %d: %w", tmdbID, err)
	}

	s.logger.Info("watch status set",
		slog.Int64("userID", userID),
		slog.Int64("tmdbID", tmdbID),
		slog.String("status", string(ws)),
	)
	return nil
}

// ClearStatus takes a movie off the user's watchlist or watched list. It is a
// no-op when the movie has no status.
func (s *LibraryService) ClearStatus(ctx context.Context, userID, tmdbID int64) error {
	item, err := s.movies.GetMovieByTMDBID(ctx, tmdbID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("service/library: looking up movie %d: %w", tmdbID, err)
	}

	um, err := s.members.FindMembership(ctx, userID, item.ID, nil)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("service/library: looking up status of movie %d: %w", tmdbID, err)
	}

	if err := s.members.DeleteMembership(ctx, um.ID); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("service/library: removing movie %d: %w", tmdbID, err)
	}
	return nil
}

type Profile struct {
	Watchlist []model.ListedMovie
	Watched   []model.ListedMovie
	Reviews   []model.ReviewWithMovie
}

// Profile shows the first movies of each status list and the most recent
// reviews, all from the local cache.
func (s *LibraryService) Profile(ctx context.Context, userID int64) (*Profile, error) {
	var p Profile
	var err error

	if p.Watchlist, err = s.members.ListByStatus(ctx, userID, model.StatusWatchlist, ProfileLimit); err != nil {
		return nil, fmt.Errorf("service/library: loading watchlist: %w", err)
	}
	if p.Watched, err = s.members.ListByStatus(ctx, userID, model.StatusWatched, ProfileLimit); err != nil {
		return nil, fmt.Errorf("service/library: loading watched: %w", err)
	}
	if p.Reviews, err = s.reviews.ListRecentReviewsWithMovies(ctx, userID, ProfileReviews); err != nil {
		return nil, fmt.Errorf("service/library: loading reviews: %w", err)
	}
	return &p, nil
}

type ListInput struct {
	Name        string `form:"name" validate:"required,max=100"`
	Description string `form:"description" validate:"max=1000"`
}

func (s *LibraryService) CreateList(ctx context.Context, userID int64, in ListInput) (*model.CustomList, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	list := &model.CustomList{UserID: userID, Name: in.Name, Description: in.Description}
	if err := s.lists.CreateList(ctx, list); err != nil {
		return nil, fmt.Errorf("service/library: creating list: %w", err)
	}

	s.logger.Info("list created", slog.Int64("userID", userID), slog.Int64("listID", list.ID))
	return list, nil
}

// Lists returns the user's custom lists, newest first.
func (s *LibraryService) Lists(ctx context.Context, userID int64) ([]model.CustomList, error) {
	lists, err := s.lists.ListListsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/library: loading lists: %w", err)
	}
	return lists, nil
}

type ListSummary struct {
	List    model.CustomList
	Count   int
	Preview []model.ListedMovie
}

// Overview summarises every list with its size and first few movies.
func (s *LibraryService) Overview(ctx context.Context, userID int64) ([]ListSummary, error) {
	lists, err := s.Lists(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]ListSummary, 0, len(lists))
	for _, l := range lists {
		count, err := s.members.CountByCustomList(ctx, l.ID)
		if err != nil {
			return nil, fmt.Errorf("service/library: counting list %d: %w", l.ID, err)
		}
		preview, err := s.members.ListByCustomList(ctx, l.ID, repository.ListOptions{Limit: ListPreview})
		if err != nil {
			return nil, fmt.Errorf("service/library: previewing list %d: %w", l.ID, err)
		}
		out = append(out, ListSummary{List: l, Count: count, Preview: preview})
	}
	return out, nil
}

// OwnedList returns the list if it exists and belongs to userID. A list owned
// by someone else is reported as not found.
func (s *LibraryService) OwnedList(ctx context.Context, userID, listID int64) (*model.CustomList, error) {
	list, err := s.lists.GetList(ctx, listID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/library: loading list %d: %w", listID, err)
	}
	if list.UserID != userID {
		return nil, apperror.NotFound("list", listID)
	}
	return list, nil
}

type ListPage struct {
	List        *model.CustomList
	Movies      []model.ListedMovie
	Page        int
	TotalPages  int
	TotalMovies int
}

// TotalPages is the number of pages of size perPage needed for total items.
func TotalPages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// ListPage returns one page of a list. Pages below 1 are treated as 1; pages
// past the end are empty.
func (s *LibraryService) ListPage(ctx context.Context, userID, listID int64, page int) (*ListPage, error) {
	list, err := s.OwnedList(ctx, userID, listID)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}

	total, err := s.members.CountByCustomList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("service/library: counting list %d: %w", listID, err)
	}

	lp := &ListPage{
		List:        list,
		Page:        page,
		TotalPages:  TotalPages(total, PerPage),
		TotalMovies: total,
	}
	// Past the end: nothing to load, and the offset could overflow.
	if page > lp.TotalPages {
		return lp, nil
	}

	lp.Movies, err = s.members.ListByCustomList(ctx, listID, repository.ListOptions{
		Limit:  PerPage,
		Offset: (page - 1) * PerPage,
	})
	if err != nil {
		return nil, fmt.Errorf("service/library: loading list %d page %d: %w", listID, page, err)
	}
	return lp, nil
}

// AddToList adds a movie to one of the user's custom lists. Adding a movie
// that is already there changes nothing.
func (s *LibraryService) AddToList(ctx context.Context, userID, listID, tmdbID int64) error {
	if _, err := s.OwnedList(ctx, userID, listID); err != nil {
		return err
	}

	item, err := s.cacheMovie(ctx, tmdbID)
	if err != nil {
		return err
	}

	_, err = s.members.FindMembership(ctx, userID, item.ID, &listID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("service/library: checking list %d for movie %d: %w", listID, tmdbID, err)
	}

	um := &model.UserMovie{
		UserID:       userID,
		MovieID:      item.ID,
		Status:       model.StatusCustom,
		CustomListID: &listID,
	}
	if err := s.members.CreateMembership(ctx, um); err != nil {
		return fmt.Errorf("service/library: adding movie %d to list %d: %w", tmdbID, listID, err)
	}
	return nil
}

// DeleteList deletes one of the user's lists with its memberships. Lists that
// do not exist or belong to someone else are left alone.
func (s *LibraryService) DeleteList(ctx context.Context, userID, listID int64) error {
	if _, err := s.OwnedList(ctx, userID, listID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.lists.DeleteList(ctx, listID); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("service/library: deleting list %d: %w", listID, err)
	}

	s.logger.Info("list deleted", slog.Int64("userID", userID), slog.Int64("listID", listID))
	return nil
}
