// Package service holds the business logic between the HTTP handlers and
// storage. Services speak in domain types and apperror values; they never see
// an http.Request.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/drissi/moviespace/internal/apperror"
	"github.com/drissi/moviespace/internal/auth"
	"github.com/drissi/moviespace/internal/model"
	"github.com/drissi/moviespace/internal/repository"
	"github.com/drissi/moviespace/internal/validation"
)

// ErrInvalidCredentials is returned by Login for an unknown username or a
// wrong password. The two cases are deliberately indistinguishable.
var ErrInvalidCredentials = apperror.ValidationFailed("", "Incorrect username or password")

type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

type RegisterInput struct {
	Username string `form:"username" validate:"required,max=50"`
	Email    string `form:"email" validate:"required,email,max=254"`
	Password string `form:"password" validate:"required"`
}

type LoginInput struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// AuthResult is a signed-in user and the session token to hand to the browser.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates an account and signs it in. A taken username is reported
// before a taken email.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	if err := s.ensureFree(ctx, "username", in.Username, s.users.GetUserByUsername); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, "email", in.Email, s.users.GetUserByEmail); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password",
				fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{
		Username:       in.Username,
		Email:          in.Email,
		HashedPassword: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", in.Username, err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issue(user)
}

func (s *AuthService) ensureFree(
	ctx context.Context,
	field, value string,
	lookup func(context.Context, string) (*model.User, error),
) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return apperror.Conflict(field, field+" is already in use")
	case errors.Is(err, apperror.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("service/auth: checking %s: %w", field, err)
	}
}

// Login checks a username and password and returns a fresh session token.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("service/auth: fetching user %q: %w", in.Username, err)
	}

	if err := s.passwords.Verify(user.HashedPassword, in.Password); err != nil {
		if errors.Is(err, auth.ErrWrongPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("service/auth: verifying password for %q: %w", in.Username, err)
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.Username)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for %q: %w", user.Username, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
