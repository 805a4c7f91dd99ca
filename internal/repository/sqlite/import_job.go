package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/drissi/moviespace/internal/apperror"
	"github.com/drissi/moviespace/internal/model"
)

const importJobColumns = `id, user_id, source, target, status, total_rows, imported,
	skipped, errors, error_message, created_at, finished_at`

// CreateImportJob stores a new job record. The caller assigns the ID.
func (s *queries) CreateImportJob(ctx context.Context, job *model.ImportJob) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO import_jobs (`+importJobColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.UserID,
		job.Source,
		job.Target,
		job.Status,
		job.TotalRows,
		job.Imported,
		job.Skipped,
		job.Errors,
		job.ErrorMessage,
		job.CreatedAt,
		nullTime(job.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting import job %s: %w", job.ID, err)
	}
	return nil
}

func (s *queries) GetImportJob(ctx context.Context, id string) (*model.ImportJob, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+importJobColumns+` FROM import_jobs WHERE id = ?`, id,
	)
	job, err := scanImportJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("import job", id)
		}
		return nil, fmt.Errorf("sqlite: getting import job %s: %w", id, err)
	}
	return job, nil
}

// UpdateImportJob writes the job's status and counters.
func (s *queries) UpdateImportJob(ctx context.Context, job *model.ImportJob) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE import_jobs
		 SET status = ?, total_rows = ?, imported = ?, skipped = ?, errors = ?,
		     error_message = ?, finished_at = ?
		 WHERE id = ?`,
		job.Status,
		job.TotalRows,
		job.Imported,
		job.Skipped,
		job.Errors,
		job.ErrorMessage,
		nullTime(job.FinishedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating import job %s: %w", job.ID, err)
	}
	return expectAffected(res, "import job", job.ID)
}

func (s *queries) FailUnfinishedImportJobs(ctx context.Context, message string, at time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE import_jobs SET status = ?, error_message = ?, finished_at = ?
		 WHERE status IN (?, ?)`,
		model.JobFailed, message, at, model.JobPending, model.JobRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failing unfinished import jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: failing unfinished import jobs: %w", err)
	}
	return n, nil
}

// ListImportJobsByUser returns the user's most recent jobs, newest first.
func (s *queries) ListImportJobsByUser(ctx context.Context, userID int64, limit int) ([]model.ImportJob, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+importJobColumns+` FROM import_jobs
		 WHERE user_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing import jobs for user %d: %w", userID, err)
	}
	defer rows.Close()

	var jobs []model.ImportJob
	for rows.Next() {
		job, err := scanImportJob(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning import job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating import jobs: %w", err)
	}
	return jobs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImportJob(sc scanner) (*model.ImportJob, error) {
	var job model.ImportJob
	var finishedAt sql.NullTime
	if err := sc.Scan(
		&job.ID, &job.UserID, &job.Source, &job.Target, &job.Status,
		&job.TotalRows, &job.Imported, &job.Skipped, &job.Errors,
		&job.ErrorMessage, &job.CreatedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	return &job, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
