package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/drissi/moviespace/internal/apperror"
	"github.com/drissi/moviespace/internal/auth"
	"github.com/drissi/moviespace/internal/model"
)

// fakeUserRepo keeps users in memory and mimics the uniqueness rules of the
// real table.
type fakeUserRepo struct {
	byName map[string]*model.User
	nextID int64

	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byName: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byName[user.Username]; ok {
		return apperror.Conflict("username", "username is already in use")
	}
	user.ID = f.nextID
	f.nextID++
	stored := *user
	f.byName[user.Username] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	for _, u := range f.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	if u, ok := f.byName[username]; ok {
		return u, nil
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.byName {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func newTestAuthService(t *testing.T, repo *fakeUserRepo) (*AuthService, *auth.TokenService) {
	t.Helper()
	ts := newTestTokens(t)
	return NewAuthService(repo, ts, auth.NewPasswordServiceForTest(4), testLogger()), ts
}

func TestRegisterThenLogin_TokenSubjectIsUsername(t *testing.T) {
	svc, tokens := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "s3cret"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if reg.User.ID == 0 {
		t.Error("Register() did not assign an ID")
	}
	if reg.User.HashedPassword == "s3cret" {
		t.Error("password stored in plaintext")
	}

	login, err := svc.Login(ctx, LoginInput{Username: "alice", Password: "s3cret"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	for name, token := range map[string]string{"register": reg.Token, "login": login.Token} {
		sub, err := tokens.Validate(token)
		if err != nil {
			t.Fatalf("%s token invalid: %v", name, err)
		}
		if sub != "alice" {
			t.Errorf("%s token subject = %q, want alice", name, sub)
		}
	}
}

func TestRegister_Rejections(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "pw"}); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	tests := []struct {
		name      string
		in        RegisterInput
		wantErr   error
		wantField string
	}{
		{
			name:      "taken username wins over taken email",
			in:        RegisterInput{Username: "alice", Email: "alice@example.com", Password: "pw"},
			wantErr:   apperror.ErrConflict,
			wantField: "username",
		},
		{
			name:      "taken email",
			in:        RegisterInput{Username: "bob", Email: "alice@example.com", Password: "pw"},
			wantErr:   apperror.ErrConflict,
			wantField: "email",
		},
		{
			name:      "missing username",
			in:        RegisterInput{Username: "  ", Email: "c@example.com", Password: "pw"},
			wantErr:   apperror.ErrValidation,
			wantField: "username",
		},
		{
			name:      "bad email",
			in:        RegisterInput{Username: "carol", Email: "not-an-email", Password: "pw"},
			wantErr:   apperror.ErrValidation,
			wantField: "email",
		},
		{
			name:      "password too long",
			in:        RegisterInput{Username: "dave", Email: "d@example.com", Password: strings.Repeat("x", 73)},
			wantErr:   apperror.ErrValidation,
			wantField: "password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Register() error = %v, want %v", err, tt.wantErr)
			}
			if got := apperror.FieldOf(err); got != tt.wantField {
				t.Errorf("field = %q, want %q", got, tt.wantField)
			}
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "right"}); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	for _, in := range []LoginInput{
		{Username: "alice", Password: "wrong"},
		{Username: "nobody", Password: "right"},
	} {
		_, err := svc.Login(ctx, in)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%q) error = %v, want ErrInvalidCredentials", in.Username, err)
		}
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("Login(%q) error should be a validation error", in.Username)
		}
	}
}

func TestRegister_RepositoryFailure(t *testing.T) {
	repo := newFakeUserRepo()
	repo.createErr = errors.New("disk full")
	svc, _ := newTestAuthService(t, repo)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "x", Email: "x@example.com", Password: "pw"})
	if err == nil || errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Register() error = %v, want wrapped storage error", err)
	}
}
