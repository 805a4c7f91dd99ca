package model

import "time"

// MovieItem is the local cache row for one external movie. It is created on
// first reference and never refreshed, so Title and PosterPath reflect the
// provider's data at that moment.
type MovieItem struct {
	ID         int64     `json:"id"`
	TMDBID     int64     `json:"tmdbId"`
	Title      string    `json:"title"`
	PosterPath string    `json:"posterPath"`
	AddedAt    time.Time `json:"addedAt"`
}

// WatchStatus records a user's relationship to a movie.
type WatchStatus string

const (
	StatusWatchlist WatchStatus = "watchlist"
	StatusWatched   WatchStatus = "watched"
	StatusCustom    WatchStatus = "custom"
)

// IsPredefined reports whether s is one of the built-in lists a user can put a
// movie on directly (custom is only reachable through a CustomList).
func (s WatchStatus) IsPredefined() bool {
	return s == StatusWatchlist || s == StatusWatched
}

// UserMovie is one list membership. Status rows (watchlist/watched) have a nil
// CustomListID; custom list rows have Status == StatusCustom and a list id.
type UserMovie struct {
	ID           int64       `json:"id"`
	UserID       int64       `json:"userId"`
	MovieID      int64       `json:"movieId"`
	Status       WatchStatus `json:"status"`
	CustomListID *int64      `json:"customListId,omitempty"`
	AddedAt      time.Time   `json:"addedAt"`
}

// ListedMovie is a UserMovie joined with its cached MovieItem.
type ListedMovie struct {
	Membership UserMovie
	Movie      MovieItem
}
