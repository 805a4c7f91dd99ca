package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/drissi/moviespace/internal/apperror"
	"github.com/drissi/moviespace/internal/model"
	"github.com/drissi/moviespace/internal/repository"
	"github.com/drissi/moviespace/internal/tmdb"
)

const DefaultSort = "popularity.desc"

// SortKeys lists the accepted sort_by values in the order the search form
// offers them.
var SortKeys = []string{
	"popularity.desc", "popularity.asc",
	"vote_average.desc", "vote_average.asc",
	"release_date.desc", "release_date.asc",
}

// CatalogService serves the browsing pages: home, search and movie detail.
type CatalogService struct {
	provider MovieProvider
	movies   repository.MovieRepository
	members  repository.UserMovieRepository
	reviews  repository.ReviewRepository
	lists    repository.ListRepository
	logger   *slog.Logger
}

func NewCatalogService(
	provider MovieProvider,
	movies repository.MovieRepository,
	members repository.UserMovieRepository,
	reviews repository.ReviewRepository,
	lists repository.ListRepository,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		provider: provider,
		movies:   movies,
		members:  members,
		reviews:  reviews,
		lists:    lists,
		logger:   logger,
	}
}

type HomePage struct {
	Popular    []tmdb.Movie
	NowPlaying []tmdb.Movie
}

func (s *CatalogService) Home(ctx context.Context) HomePage {
	return HomePage{
		Popular:    s.provider.Popular(ctx),
		NowPlaying: s.provider.NowPlaying(ctx),
	}
}

type SearchQuery struct {
	Query    string
	Genre    string
	Year     string
	Language string
	SortBy   string
}

type SearchResult struct {
	SearchQuery
	Movies      []tmdb.Movie
	Genres      []tmdb.Genre
	HasCriteria bool
}

// Search runs in one of two modes. With a query it asks the provider's text
// search, then filters by genre and language and sorts locally. Without one
// it hands every filter and the sort to the provider's discover endpoint.
func (s *CatalogService) Search(ctx context.Context, q SearchQuery) SearchResult {
	q.Query = strings.TrimSpace(q.Query)
	q.Genre = strings.TrimSpace(q.Genre)
	q.Year = strings.TrimSpace(q.Year)
	q.Language = strings.TrimSpace(q.Language)
	if q.SortBy == "" {
		q.SortBy = DefaultSort
	}

	res := SearchResult{
		SearchQuery: q,
		Genres:      s.provider.Genres(ctx),
		HasCriteria: q.Query != "" || q.Genre != "" || q.Year != "" || q.Language != "",
	}

	if q.Query == "" {
		res.Movies = s.provider.Discover(ctx, tmdb.DiscoverFilter{
			SortBy:   q.SortBy,
			Genre:    q.Genre,
			Year:     q.Year,
			Language: q.Language,
		})
		return res
	}

	movies := s.provider.SearchMovies(ctx, q.Query, q.Year)
	if q.Genre != "" {
		movies = slices.DeleteFunc(movies, func(m tmdb.Movie) bool { return !m.HasGenre(q.Genre) })
	}
	if q.Language != "" {
		lang := strings.ToLower(q.Language)
		movies = slices.DeleteFunc(movies, func(m tmdb.Movie) bool {
			return !strings.Contains(strings.ToLower(m.OriginalLanguage), lang)
		})
	}
	sortMovies(movies, q.SortBy)
	res.Movies = movies
	return res
}

// sortMovies orders movies in place by one of SortKeys. Unknown keys keep the
// provider's order.
func sortMovies(movies []tmdb.Movie, key string) {
	var cmpFn func(a, b tmdb.Movie) int
	switch key {
	case "popularity.desc":
		cmpFn = func(a, b tmdb.Movie) int { return cmp.Compare(b.Popularity, a.Popularity) }
	case "popularity.asc":
		cmpFn = func(a, b tmdb.Movie) int { return cmp.Compare(a.Popularity, b.Popularity) }
	case "vote_average.desc":
		cmpFn = func(a, b tmdb.Movie) int { return cmp.Compare(b.VoteAverage, a.VoteAverage) }
	case "vote_average.asc":
		cmpFn = func(a, b tmdb.Movie) int { return cmp.Compare(a.VoteAverage, b.VoteAverage) }
	case "release_date.desc":
		cmpFn = func(a, b tmdb.Movie) int { return cmp.Compare(b.ReleaseDate, a.ReleaseDate) }
	case "release_date.asc":
		cmpFn = func(a, b tmdb.Movie) int { return cmp.Compare(a.ReleaseDate, b.ReleaseDate) }
	default:
		return
	}
	slices.SortStableFunc(movies, cmpFn)
}

type MovieDetail struct {
	Movie   *tmdb.Movie
	Trailer string
	Reviews []model.ReviewWithAuthor
	// UserStatus is the viewer's watchlist/watched status, "" if none or
	// anonymous.
	UserStatus  model.WatchStatus
	CustomLists []model.CustomList
}

// MovieDetail assembles the movie page. viewer may be nil.
func (s *CatalogService) MovieDetail(ctx context.Context, tmdbID int64, viewer *model.User) (*MovieDetail, error) {
	movie, ok := s.provider.Movie(ctx, tmdbID)
	if !ok {
		return nil, apperror.NotFound("movie", tmdbID)
	}

	d := &MovieDetail{
		Movie:   movie,
		Trailer: s.provider.Trailer(ctx, tmdbID),
	}

	reviews, err := s.reviews.ListReviewsForMovie(ctx, tmdbID)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: loading reviews for %d: %w", tmdbID, err)
	}
	d.Reviews = reviews

	if viewer == nil {
		return d, nil
	}

	status, err := watchStatus(ctx, s.movies, s.members, viewer.ID, tmdbID)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: loading status for %d: %w", tmdbID, err)
	}
	d.UserStatus = status

	lists, err := s.lists.ListListsByUser(ctx, viewer.ID)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: loading lists of user %d: %w", viewer.ID, err)
	}
	d.CustomLists = lists

	return d, nil
}

// watchStatus returns the user's status row status for a movie, or "".
func watchStatus(
	ctx context.Context,
	movies repository.MovieRepository,
	members repository.UserMovieRepository,
	userID, tmdbID int64,
) (model.WatchStatus, error) {
	item, err := movies.GetMovieByTMDBID(ctx, tmdbID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	um, err := members.FindMembership(ctx, userID, item.ID, nil)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return um.Status, nil
}
