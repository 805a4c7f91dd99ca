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

type ReviewInput struct {
	Rating     float64 `form:"rating" validate:"gte=1,lte=10"`
	ReviewText string  `form:"review_text" validate:"max=5000"`
}

type ReviewService struct {
	provider MovieProvider
	movies   repository.MovieRepository
	reviews  repository.ReviewRepository
	logger   *slog.Logger
}

func NewReviewService(
	provider MovieProvider,
	movies repository.MovieRepository,
	reviews repository.ReviewRepository,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		provider: provider,
		movies:   movies,
		reviews:  reviews,
		logger:   logger,
	}
}

// Save writes the user's review of a movie, replacing rating and text of an
// earlier review rather than adding a second one.
//
// The movie is cached on the way so the review shows up on the profile page.
// If the provider is unavailable the review is still saved.
func (s *ReviewService) Save(ctx context.Context, userID, tmdbID int64, in ReviewInput) (*model.Review, error) {
	in.ReviewText = strings.TrimSpace(in.ReviewText)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	if movie, ok := s.provider.Movie(ctx, tmdbID); ok {
		if _, err := ensureMovie(ctx, s.movies, *movie); err != nil {
			s.logger.Warn("could not cache reviewed movie",
				slog.Int64("tmdbID", tmdbID),
				slog.String("error", err.Error()),
			)
		}
	}

	review, err := s.upsert(ctx, userID, tmdbID, in)
	if errors.Is(err, apperror.ErrConflict) {
		// A concurrent request inserted first; update that row instead.
		review, err = s.upsert(ctx, userID, tmdbID, in)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("review saved",
		slog.Int64("userID", userID),
		slog.Int64("tmdbID", tmdbID),
		slog.Float64("rating", review.Rating),
	)
	return review, nil
}

func (s *ReviewService) upsert(ctx context.Context, userID, tmdbID int64, in ReviewInput) (*model.Review, error) {
	existing, err := s.reviews.GetReview(ctx, userID, tmdbID)
	switch {
	case err == nil:
		existing.Rating = in.Rating
		existing.ReviewText = in.ReviewText
		if err := s.reviews.UpdateReview(ctx, existing); err != nil {
			return nil, fmt.Errorf("service/review: updating review %d: %w", existing.ID, err)
		}
		return existing, nil

	case errors.Is(err, apperror.ErrNotFound):
		review := &model.Review{
			UserID:     userID,
			TMDBID:     tmdbID,
			Rating:     in.Rating,
			ReviewText: in.ReviewText,
		}
		if err := s.reviews.CreateReview(ctx, review); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				return nil, err
			}
			return nil, fmt.Errorf("service/review: creating review: %w", err)
		}
		return review, nil

	default:
		return nil, fmt.Errorf("service/review: looking up review: %w", err)
	}
}
