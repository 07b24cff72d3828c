package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kevinshaw/invoice-intel/internal/models"
	"github.com/kevinshaw/invoice-intel/pkg/database"
)

// ErrInvalidTransition is returned when a job status change does not follow
// queued -> processing -> complete|error.
var ErrInvalidTransition = fmt.Errorf("invalid job status transition")

// JobRepository persists processing jobs. Status transitions are enforced in
// SQL with compare-and-set updates, so a terminal job can never be reopened
// and two workers cannot both claim the same queued job.
type JobRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *database.DB, logger *zap.Logger) *JobRepository {
	return &JobRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new queued job
func (r *JobRepository) Create(ctx context.Context, job *models.ProcessingJob) error {
	query := `
		INSERT INTO processing_jobs (job_id, status, pdf_path, started_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		job.JobID,
		job.Status,
		job.PDFPath,
		job.StartedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create job", zap.String("job_id", job.JobID), zap.Error(err))
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetByID fetches a job, or nil if unknown
func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*models.ProcessingJob, error) {
	query := `
		SELECT job_id, status, pdf_path, started_at, completed_at, result, error_message
		FROM processing_jobs
		WHERE job_id = ?
	`

	var job models.ProcessingJob
	var completedAt sql.NullTime
	var result, errMsg sql.NullString
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, jobID).Scan(
		&job.JobID,
		&job.Status,
		&job.PDFPath,
		&job.StartedAt,
		&completedAt,
		&result,
		&errMsg,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get job", zap.String("job_id", jobID), zap.Error(err))
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	if result.Valid {
		job.Result = json.RawMessage(result.String)
	}
	job.ErrorMessage = errMsg.String

	return &job, nil
}

// NextQueued returns up to limit queued jobs, oldest first
func (r *JobRepository) NextQueued(ctx context.Context, limit int) ([]*models.ProcessingJob, error) {
	query := `
		SELECT job_id, status, pdf_path, started_at
		FROM processing_jobs
		WHERE status = ?
		ORDER BY started_at
		LIMIT ?
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, models.JobStatusQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ProcessingJob
	for rows.Next() {
		var job models.ProcessingJob
		if err := rows.Scan(&job.JobID, &job.Status, &job.PDFPath, &job.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

// MarkProcessing claims a queued job. ErrInvalidTransition means another
// worker got there first or the job is already terminal.
func (r *JobRepository) MarkProcessing(ctx context.Context, jobID string) error {
	return r.transition(ctx, jobID,
		`UPDATE processing_jobs SET status = ? WHERE job_id = ? AND status = ?`,
		models.JobStatusProcessing, jobID, models.JobStatusQueued)
}

// MarkComplete finishes a processing job with its result payload
func (r *JobRepository) MarkComplete(ctx context.Context, jobID string, result json.RawMessage) error {
	return r.transition(ctx, jobID,
		`UPDATE processing_jobs SET status = ?, result = ?, completed_at = ? WHERE job_id = ? AND status = ?`,
		models.JobStatusComplete, string(result), time.Now().UTC(), jobID, models.JobStatusProcessing)
}

// MarkError finishes a processing job with a failure message
func (r *JobRepository) MarkError(ctx context.Context, jobID, message string) error {
	return r.transition(ctx, jobID,
		`UPDATE processing_jobs SET status = ?, error_message = ?, completed_at = ? WHERE job_id = ? AND status = ?`,
		models.JobStatusError, message, time.Now().UTC(), jobID, models.JobStatusProcessing)
}

// MarkStale fails every processing job submitted before the cutoff and
// returns how many it touched. This is the safety net for jobs whose
// terminal transition never landed: they move to error, not back to queued.
func (r *JobRepository) MarkStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE processing_jobs
		SET status = ?, error_message = ?, completed_at = ?
		WHERE status = ? AND started_at < ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		models.JobStatusError, "processing timed out", time.Now().UTC(),
		models.JobStatusProcessing, cutoff)
	if err != nil {
		r.logger.Error("Failed to fail stale jobs", zap.Error(err))
		return 0, fmt.Errorf("failed to fail stale jobs: %w", err)
	}
	return result.RowsAffected()
}

func (r *JobRepository) transition(ctx context.Context, jobID, query string, args ...interface{}) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update job status", zap.String("job_id", jobID), zap.Error(err))
		return fmt.Errorf("failed to update job status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check job update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrInvalidTransition)
	}
	return nil
}
