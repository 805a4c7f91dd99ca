package model

import "time"

// Review is a user's rating (1-10) and optional text for one external movie.
// There is at most one review per (UserID, TMDBID).
type Review struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	TMDBID     int64     `json:"tmdbId"`
	Rating     float64   `json:"rating"`
	ReviewText string    `json:"reviewText"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ReviewWithAuthor is a Review joined with the reviewer's username.
type ReviewWithAuthor struct {
	Review
	Username string
}

// ReviewWithMovie is a Review joined with the cached movie it refers to.
type ReviewWithMovie struct {
	Review Review
	Movie  MovieItem
}
