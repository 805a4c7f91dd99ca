package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/spf13/cast"

	"github.com/drissi/moviespace/internal/apperror"
	"github.com/drissi/moviespace/internal/jobs"
	"github.com/drissi/moviespace/internal/model"
	"github.com/drissi/moviespace/internal/repository"
	"github.com/drissi/moviespace/internal/tmdb"
	"github.com/drissi/moviespace/internal/validation"
)

const RecentImportJobs = 10

// ErrInterrupted is the failure recorded for imports cut short by shutdown.
var ErrInterrupted = errors.New("import interrupted by shutdown")

// JobSubmitter queues background work; *jobs.Pool implements it.
type JobSubmitter interface {
	Submit(job jobs.Job) error
}

type ImportConfig struct {
	MaxRows   int
	BatchSize int
}

// ImportService turns an uploaded CSV export into list memberships. Start
// validates the upload and queues a job; the job resolves each row against the
// movie provider and writes in batched transactions.
type ImportService struct {
	provider MovieProvider
	lists    repository.ListRepository
	jobRepo  repository.ImportJobRepository
	tx       repository.Transactor
	pool     JobSubmitter
	cfg      ImportConfig
	logger   *slog.Logger
}

func NewImportService(
	provider MovieProvider,
	lists repository.ListRepository,
	jobRepo repository.ImportJobRepository,
	tx repository.Transactor,
	pool JobSubmitter,
	cfg ImportConfig,
	logger *slog.Logger,
) *ImportService {
	return &ImportService{
		provider: provider,
		lists:    lists,
		jobRepo:  jobRepo,
		tx:       tx,
		pool:     pool,
		cfg:      cfg,
		logger:   logger,
	}
}

// Row is one CSV data row keyed by header name.
type Row map[string]string

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads a CSV export with a header row. It stops and returns a
// validation error as soon as there are more than maxRows data rows.
func ParseCSV(r io.Reader, maxRows int) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("service/import: reading upload: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.ValidationFailed("file", "file is not a valid CSV: "+err.Error())
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperror.ValidationFailed("file", "file is not a valid CSV: "+err.Error())
		}
		if len(rows) == maxRows {
			return nil, apperror.ValidationFailed("file", fmt.Sprintf(
				"too many movies: the maximum is %d per import, split the file into smaller ones", maxRows))
		}

		row := make(Row, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type ImportRequest struct {
	Source string `form:"import_type" validate:"required,oneof=letterboxd imdb"`
	Target string `form:"target" validate:"required"`
	Rows   []Row  `form:"-" validate:"-"`
}

// destination is where imported movies go: a status row (listID nil) or a
// custom list.
type destination struct {
	status model.WatchStatus
	listID *int64
}

func (s *ImportService) resolveTarget(ctx context.Context, userID int64, target string) (destination, error) {
	if ws := model.WatchStatus(target); ws.IsPredefined() {
		return destination{status: ws}, nil
	}

	listID, err := cast.ToInt64E(target)
	if err != nil || listID <= 0 {
		return destination{}, apperror.ValidationFailed("target", "target must be watchlist, watched or one of your lists")
	}
	list, err := s.lists.GetList(ctx, listID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return destination{}, err
		}
		return destination{}, fmt.Errorf("service/import: loading list %d: %w", listID, err)
	}
	if list.UserID != userID {
		return destination{}, apperror.NotFound("list", listID)
	}
	return destination{status: model.StatusCustom, listID: &listID}, nil
}

// Start records a pending job for req and queues it. The returned job has
// TotalRows set; its counters fill in as the job runs.
func (s *ImportService) Start(ctx context.Context, userID int64, req ImportRequest) (*model.ImportJob, error) {
	req.Source = strings.TrimSpace(req.Source)
	req.Target = strings.TrimSpace(req.Target)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if len(req.Rows) > s.cfg.MaxRows {
		return nil, apperror.ValidationFailed("file", fmt.Sprintf(
			"too many movies (%d): the maximum is %d per import", len(req.Rows), s.cfg.MaxRows))
	}

	dest, err := s.resolveTarget(ctx, userID, req.Target)
	if err != nil {
		return nil, err
	}

	job := &model.ImportJob{
		ID:        xid.New().String(),
		UserID:    userID,
		Source:    model.ImportSource(req.Source),
		Target:    req.Target,
		Status:    model.JobPending,
		TotalRows: len(req.Rows),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.jobRepo.CreateImportJob(ctx, job); err != nil {
		return nil, fmt.Errorf("service/import: recording job: %w", err)
	}

	rows := req.Rows
	queued := *job
	err = s.pool.Submit(jobs.Job{
		Name: "import:" + job.ID,
		Run: func(ctx context.Context) error {
			return s.run(ctx, &queued, dest, rows)
		},
		Drop: func() {
			s.finish(context.Background(), &queued, ErrInterrupted)
		},
	})
	if err != nil {
		s.finish(ctx, job, err)
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, apperror.Conflict("file", "too many imports are running, try again in a minute")
		}
		return nil, fmt.Errorf("service/import: queueing job %s: %w", job.ID, err)
	}

	s.logger.Info("import queued",
		slog.String("jobID", job.ID),
		slog.Int64("userID", userID),
		slog.String("source", req.Source),
		slog.String("target", req.Target),
		slog.Int("rows", len(rows)),
	)
	return job, nil
}

// FailInterrupted marks jobs left pending or running by a previous process as
// failed. Call it at startup, before the pool accepts work.
func (s *ImportService) FailInterrupted(ctx context.Context) error {
	n, err := s.jobRepo.FailUnfinishedImportJobs(ctx, ErrInterrupted.Error(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("service/import: failing interrupted jobs: %w", err)
	}
	if n > 0 {
		s.logger.Warn("marked interrupted imports as failed", slog.Int64("jobs", n))
	}
	return nil
}

// RecentJobs returns the user's latest imports, newest first.
func (s *ImportService) RecentJobs(ctx context.Context, userID int64) ([]model.ImportJob, error) {
	list, err := s.jobRepo.ListImportJobsByUser(ctx, userID, RecentImportJobs)
	if err != nil {
		return nil, fmt.Errorf("service/import: loading jobs: %w", err)
	}
	return list, nil
}

// match is a row resolved to a provider movie, waiting to be written.
type match struct {
	index int
	movie tmdb.Movie
}

type importRun struct {
	job     *model.ImportJob
	dest    destination
	pending []match
	// counters as of the last commit
	committed model.ImportJob
}

// run processes rows for job. Rows are independent: a row without a
// title or without a search hit is skipped, a row whose write fails is
// counted as an error. Matches are written in transactions of BatchSize rows.
// If a transaction cannot be opened or committed, the pending batch is rolled
// back and the job ends as failed. Every return leaves job completed or failed.
func (s *ImportService) run(ctx context.Context, job *model.ImportJob, dest destination, rows []Row) error {
	if ctx.Err() != nil {
		s.finish(ctx, job, ErrInterrupted)
		return ErrInterrupted
	}

	job.Status = model.JobRunning
	if err := s.jobRepo.UpdateImportJob(ctx, job); err != nil {
		err = fmt.Errorf("service/import: marking job %s running: %w", job.ID, err)
		s.finish(ctx, job, err)
		return err
	}

	run := &importRun{job: job, dest: dest}
	err := s.process(ctx, run, rows)
	if errors.Is(err, context.Canceled) {
		err = ErrInterrupted
	}
	if err != nil {
		job.Imported = run.committed.Imported
		job.Skipped = run.committed.Skipped
		job.Errors = run.committed.Errors
	}
	s.finish(ctx, job, err)

	s.logger.Info("import finished",
		slog.String("jobID", job.ID),
		slog.String("status", string(job.Status)),
		slog.Int("imported", job.Imported),
		slog.Int("skipped", job.Skipped),
		slog.Int("errors", job.Errors),
	)
	return err
}

func (s *ImportService) process(ctx context.Context, run *importRun, rows []Row) error {
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		title, year := extractTitle(run.job.Source, row)
		if title == "" {
			run.job.Skipped++
			continue
		}

		query := title
		if year != "" {
			query = title + " " + year
		}
		results := s.provider.SearchMovies(ctx, query, "")
		if len(results) == 0 {
			run.job.Skipped++
			continue
		}

		run.pending = append(run.pending, match{index: i, movie: results[0]})
		if len(run.pending) >= s.cfg.BatchSize {
			if err := s.flush(ctx, run); err != nil {
				return err
			}
		}
	}
	return s.flush(ctx, run)
}

// flush writes the pending matches in one transaction and records progress.
func (s *ImportService) flush(ctx context.Context, run *importRun) error {
	if len(run.pending) == 0 {
		return nil
	}

	tx, err := s.tx.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("service/import: beginning batch: %w", err)
	}
	defer tx.Rollback()

	for _, m := range run.pending {
		imported, err := s.writeMatch(ctx, tx, run.job.UserID, run.dest, m.movie)
		switch {
		case err != nil:
			run.job.Errors++
			s.logger.Warn("import row failed",
				slog.String("jobID", run.job.ID),
				slog.Int("row", m.index+1),
				slog.String("title", m.movie.Title),
				slog.String("error", err.Error()),
			)
		case imported:
			run.job.Imported++
		default:
			run.job.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("service/import: committing batch: %w", err)
	}
	run.pending = run.pending[:0]
	run.committed = *run.job

	if err := s.jobRepo.UpdateImportJob(ctx, run.job); err != nil {
		s.logger.Warn("could not record import progress",
			slog.String("jobID", run.job.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// writeMatch caches the movie and adds the membership unless the user already
// has it at dest. It reports whether a membership was added.
//
// For watchlist and watched targets any existing status row counts, whatever
// its status: a movie already marked watched is skipped, not moved back to the
// watchlist.
func (s *ImportService) writeMatch(ctx context.Context, tx repository.Tx, userID int64, dest destination, movie tmdb.Movie) (bool, error) {
	item, err := ensureMovie(ctx, tx, movie)
	if err != nil {
		return false, fmt.Errorf("caching movie %d: %w", movie.ID, err)
	}

	_, err = tx.FindMembership(ctx, userID, item.ID, dest.listID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return false, fmt.Errorf("checking membership: %w", err)
	}

	um := &model.UserMovie{
		UserID:       userID,
		MovieID:      item.ID,
		Status:       dest.status,
		CustomListID: dest.listID,
	}
	if err := tx.CreateMembership(ctx, um); err != nil {
		return false, fmt.Errorf("adding membership: %w", err)
	}
	return true, nil
}

// finish stores the terminal state of job. runErr nil means completed.
func (s *ImportService) finish(ctx context.Context, job *model.ImportJob, runErr error) {
	now := time.Now().UTC()
	job.FinishedAt = &now
	job.Status = model.JobCompleted
	job.ErrorMessage = ""
	if runErr != nil {
		job.Status = model.JobFailed
		job.ErrorMessage = runErr.Error()
	}

	// Record the outcome even when the run was cancelled by shutdown.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.jobRepo.UpdateImportJob(ctx, job); err != nil {
		s.logger.Error("could not record import result",
			slog.String("jobID", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

// extractTitle picks the title and year columns for source. A year that is
// not a positive number is dropped.
func extractTitle(source model.ImportSource, row Row) (title, year string) {
	var rawYear string
	switch source {
	case model.SourceLetterboxd:
		title, rawYear = row["Name"], row["Year"]
	case model.SourceIMDb:
		title = firstNonEmpty(row["Title"], row["title"])
		rawYear = firstNonEmpty(row["Year"], row["year"])
	}

	title = strings.TrimSpace(title)
	if y := cast.ToInt(strings.TrimSpace(rawYear)); y > 0 {
		year = strconv.Itoa(y)
	}
	return title, year
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// StartedMessage is the notice shown after an upload is accepted.
func StartedMessage(job *model.ImportJob) string {
	return fmt.Sprintf("Import started for %d movies. This can take a few minutes; refresh the page to see the results.", job.TotalRows)
}

// RedirectPath is where the user lands after starting job: the target list, or
// the profile for watchlist/watched imports.
func RedirectPath(job *model.ImportJob) string {
	if ws := model.WatchStatus(job.Target); ws.IsPredefined() {
		return "/profile"
	}
	return "/lists/" + job.Target
}
