package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JustinTDCT/Posteract/internal/config"
	"github.com/JustinTDCT/Posteract/internal/db"
	"github.com/JustinTDCT/Posteract/internal/models"
	"github.com/google/uuid"
)

// JobRepository tracks the workflow status of every media item, keyed by
// media key, along with the retry bookkeeping for failed attempts.
type JobRepository struct {
	db         *db.DB
	now        func() time.Time
	retryDelay time.Duration
}

func NewJobRepository(d *db.DB, retryDelay time.Duration) *JobRepository {
	if retryDelay <= 0 {
		retryDelay = config.DefaultRetryDelay
	}
	return &JobRepository{db: d, now: time.Now, retryDelay: retryDelay}
}

const jobColumns = `id, media_id, tmdb_id, source_used, poster_type, status, retry_count,
	last_error, last_attempt_at, next_retry_at, created_at, updated_at`

// Upsert creates the row for job.MediaKey or refreshes its identity fields and
// status. Retry bookkeeping is left untouched.
func (r *JobRepository) Upsert(ctx context.Context, job *models.PosterJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := formatTime(r.now())
	query := r.db.Rebind(`INSERT INTO poster_jobs (id, media_id, tmdb_id, source_used, poster_type, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (media_id) DO UPDATE SET
			tmdb_id = excluded.tmdb_id,
			source_used = excluded.source_used,
			poster_type = excluded.poster_type,
			status = excluded.status,
			updated_at = excluded.updated_at`)
	_, err := r.db.ExecContext(ctx, query, job.ID.String(), job.MediaKey, nullablePtr(job.TMDBID),
		nullablePtr(job.SourceUsed), nullablePtr(job.PosterType), string(job.Status), now, now)
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", job.MediaKey, err)
	}
	return nil
}

// UpdateStatus records an attempt. Entering failed or not_found bumps the
// retry count and schedules the next retry retryIn from now (the repository
// default when retryIn is zero); any other status clears the retry timer.
func (r *JobRepository) UpdateStatus(ctx context.Context, mediaKey string, status models.TaskStatus, errMsg string, retryIn time.Duration) error {
	if retryIn <= 0 {
		retryIn = r.retryDelay
	}
	now := r.now()
	var (
		nextRetry any
		bump      int
	)
	if status.Retryable() {
		nextRetry = formatTime(now.Add(retryIn))
		bump = 1
	}

	query := r.db.Rebind(`UPDATE poster_jobs
		SET status = ?,
			last_error = ?,
			last_attempt_at = ?,
			next_retry_at = ?,
			retry_count = CASE WHEN ? = 1 THEN retry_count + 1 ELSE retry_count END,
			updated_at = ?
		WHERE media_id = ?`)
	_, err := r.db.ExecContext(ctx, query, string(status), nullable(errMsg), formatTime(now), nextRetry,
		bump, formatTime(now), mediaKey)
	if err != nil {
		return fmt.Errorf("update job %s: %w", mediaKey, err)
	}
	return nil
}

// MarkUploaded closes a job successfully: retry count back to zero, error and
// retry timer cleared.
func (r *JobRepository) MarkUploaded(ctx context.Context, mediaKey string) error {
	now := formatTime(r.now())
	query := r.db.Rebind(`UPDATE poster_jobs
		SET status = ?,
			last_error = NULL,
			next_retry_at = NULL,
			retry_count = 0,
			last_attempt_at = ?,
			updated_at = ?
		WHERE media_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, string(models.TaskUploaded), now, now, mediaKey); err != nil {
		return fmt.Errorf("mark job %s uploaded: %w", mediaKey, err)
	}
	return nil
}

func (r *JobRepository) Get(ctx context.Context, mediaKey string) (*models.PosterJob, error) {
	row := r.db.QueryRowContext(ctx,
		r.db.Rebind(`SELECT `+jobColumns+` FROM poster_jobs WHERE media_id = ?`), mediaKey)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

// List returns the most recently updated jobs, optionally filtered by status.
func (r *JobRepository) List(ctx context.Context, status models.TaskStatus, limit int) ([]*models.PosterJob, error) {
	query := `SELECT ` + jobColumns + ` FROM poster_jobs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY updated_at DESC, media_id ASC LIMIT ?`
	args = append(args, limit)
	return r.query(ctx, query, args...)
}

// DueRetries returns failed and not_found jobs whose retry timer has expired,
// soonest first.
func (r *JobRepository) DueRetries(ctx context.Context, limit int) ([]*models.PosterJob, error) {
	query := `SELECT ` + jobColumns + ` FROM poster_jobs
		WHERE status IN (?, ?) AND next_retry_at IS NOT NULL AND next_retry_at <= ?
		ORDER BY next_retry_at ASC, media_id ASC
		LIMIT ?`
	return r.query(ctx, query, string(models.TaskFailed), string(models.TaskNotFound),
		formatTime(r.now()), limit)
}

// Clear deletes every job row and returns how many were removed.
func (r *JobRepository) Clear(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM poster_jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}

func (r *JobRepository) query(ctx context.Context, query string, args ...any) ([]*models.PosterJob, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.PosterJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(s rowScanner) (*models.PosterJob, error) {
	var (
		job                  models.PosterJob
		id, status           string
		tmdbID               sql.NullInt64
		source, posterType   sql.NullString
		lastError            sql.NullString
		lastAttempt, next    sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&id, &job.MediaKey, &tmdbID, &source, &posterType, &status, &job.RetryCount,
		&lastError, &lastAttempt, &next, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if job.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("job %s: bad id: %w", job.MediaKey, err)
	}
	job.Status = models.TaskStatus(status)
	job.TMDBID = nullInt(tmdbID)
	job.SourceUsed = nullString(source)
	job.PosterType = nullString(posterType)
	job.LastError = nullString(lastError)
	if job.LastAttemptAt, err = nullTime(lastAttempt); err != nil {
		return nil, err
	}
	if job.NextRetryAt, err = nullTime(next); err != nil {
		return nil, err
	}
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &job, nil
}
