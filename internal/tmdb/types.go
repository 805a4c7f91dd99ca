package tmdb

import "strconv"

// Movie is the subset of a TMDB movie record the site renders. List endpoints
// fill GenreIDs; the details endpoint fills Genres, Runtime and Tagline.
type Movie struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	ReleaseDate      string  `json:"release_date"`
	OriginalLanguage string  `json:"original_language"`
	Popularity       float64 `json:"popularity"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	GenreIDs         []int   `json:"genre_ids"`
	Genres           []Genre `json:"genres"`
	Runtime          int     `json:"runtime"`
	Tagline          string  `json:"tagline"`
}

// Year is the four-digit release year, or "" when the date is unknown.
func (m Movie) Year() string {
	if len(m.ReleaseDate) < 4 {
		return ""
	}
	return m.ReleaseDate[:4]
}

// HasGenre reports whether genre (a numeric id as text) is among GenreIDs.
func (m Movie) HasGenre(genre string) bool {
	for _, id := range m.GenreIDs {
		if strconv.Itoa(id) == genre {
			return true
		}
	}
	return false
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Video struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Site string `json:"site"`
	Type string `json:"type"`
}

// DiscoverFilter holds the filter-only search criteria.
type DiscoverFilter struct {
	SortBy   string
	Genre    string
	Year     string
	Language string
}
