package service

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/drissi/moviespace/internal/jobs"
	"github.com/drissi/moviespace/internal/model"
	"github.com/drissi/moviespace/internal/repository/sqlite"
	"github.com/drissi/moviespace/internal/tmdb"
)

// fakeProvider serves a fixed catalogue and records which endpoints were hit.
type fakeProvider struct {
	mu       sync.Mutex
	movies   map[int64]tmdb.Movie
	search   map[string][]tmdb.Movie // keyed by exact query
	discover []tmdb.Movie
	genres   []tmdb.Genre
	trailers map[int64]string

	searchCalls   []string
	discoverCalls []tmdb.DiscoverFilter
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		movies:   make(map[int64]tmdb.Movie),
		search:   make(map[string][]tmdb.Movie),
		trailers: make(map[int64]string),
	}
}

func (f *fakeProvider) add(m tmdb.Movie) tmdb.Movie {
	f.movies[m.ID] = m
	return m
}

func (f *fakeProvider) Popular(context.Context) []tmdb.Movie    { return slices.Clone(f.discover) }
func (f *fakeProvider) NowPlaying(context.Context) []tmdb.Movie { return nil }
func (f *fakeProvider) Genres(context.Context) []tmdb.Genre     { return f.genres }

func (f *fakeProvider) Movie(_ context.Context, id int64) (*tmdb.Movie, bool) {
	m, ok := f.movies[id]
	if !ok {
		return nil, false
	}
	return &m, true
}

func (f *fakeProvider) Trailer(_ context.Context, id int64) string {
	return f.trailers[id]
}

func (f *fakeProvider) SearchMovies(_ context.Context, query, _ string) []tmdb.Movie {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, query)
	return slices.Clone(f.search[query])
}

func (f *fakeProvider) Discover(_ context.Context, filter tmdb.DiscoverFilter) []tmdb.Movie {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discoverCalls = append(f.discoverCalls, filter)
	return slices.Clone(f.discover)
}

// newTestStore opens a real SQLite database in a temp dir.
func newTestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "service.db"), testLogger())
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *sqlite.DB, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", HashedPassword: "x"}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	return u
}

func seedList(t *testing.T, db *sqlite.DB, userID int64, name string) *model.CustomList {
	t.Helper()
	l := &model.CustomList{UserID: userID, Name: name}
	if err := db.CreateList(context.Background(), l); err != nil {
		t.Fatalf("seeding list: %v", err)
	}
	return l
}

// countRows counts user_movies rows for userID through the public repository
// surface: status rows plus rows of each of the user's lists.
func countRows(t *testing.T, db *sqlite.DB, userID int64) int {
	t.Helper()
	ctx := context.Background()
	n := 0
	for _, st := range []model.WatchStatus{model.StatusWatchlist, model.StatusWatched} {
		rows, err := db.ListByStatus(ctx, userID, st, 1000)
		if err != nil {
			t.Fatalf("ListByStatus: %v", err)
		}
		n += len(rows)
	}
	lists, err := db.ListListsByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListListsByUser: %v", err)
	}
	for _, l := range lists {
		c, err := db.CountByCustomList(ctx, l.ID)
		if err != nil {
			t.Fatalf("CountByCustomList: %v", err)
		}
		n += c
	}
	return n
}

// inlinePool runs submitted jobs synchronously on the caller's goroutine.
// Like jobs.Pool, a job's own error is not reported back to Submit.
type inlinePool struct {
	submitErr error
	ran       []string
	lastErr   error
}

func (p *inlinePool) Submit(job jobs.Job) error {
	if p.submitErr != nil {
		return p.submitErr
	}
	p.ran = append(p.ran, job.Name)
	p.lastErr = job.Run(context.Background())
	return nil
}

func csvRows(t *testing.T, text string) []Row {
	t.Helper()
	rows, err := ParseCSV(strings.NewReader(text), 2000)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	return rows
}
