package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kevinshaw/invoice-intel/internal/models"
	"github.com/kevinshaw/invoice-intel/internal/pipeline"
	"go.uber.org/zap"
)

// Runner executes one extraction from file path to persisted invoice
type Runner interface {
	Run(ctx context.Context, pdfPath string) (*pipeline.Result, error)
}

// JobStore persists jobs and their state transitions
type JobStore interface {
	Create(ctx context.Context, job *models.ProcessingJob) error
	GetByID(ctx context.Context, jobID string) (*models.ProcessingJob, error)
	NextQueued(ctx context.Context, limit int) ([]*models.ProcessingJob, error)
	MarkProcessing(ctx context.Context, jobID string) error
	MarkComplete(ctx context.Context, jobID string, result json.RawMessage) error
	MarkError(ctx context.Context, jobID, message string) error
	MarkStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Ledger tracks document-processing jobs. Every job it runs ends in a
// terminal state: pipeline errors and panics both land in the error state
// with a message, never in a stuck processing row.
type Ledger struct {
	store    JobStore
	pipeline Runner
	logger   *zap.Logger
}

func NewLedger(store JobStore, runner Runner, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:    store,
		pipeline: runner,
		logger:   logger,
	}
}

// Submit records a new queued job for the given document and returns its ID
func (l *Ledger) Submit(ctx context.Context, pdfPath string) (string, error) {
	job := &models.ProcessingJob{
		JobID:     uuid.NewString(),
		Status:    models.JobStatusQueued,
		PDFPath:   pdfPath,
		StartedAt: time.Now().UTC(),
	}
	if err := l.store.Create(ctx, job); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	l.logger.Info("Job queued",
		zap.String("job_id", job.JobID),
		zap.String("pdf_path", pdfPath))
	return job.JobID, nil
}

// Status returns the current job record
func (l *Ledger) Status(ctx context.Context, jobID string) (*models.ProcessingJob, error) {
	return l.store.GetByID(ctx, jobID)
}

// Run claims the job and drives it to a terminal state. The claim is a
// compare-and-set on the queued status, so concurrent runners racing for the
// same job leave exactly one winner.
func (l *Ledger) Run(ctx context.Context, jobID string) {
	job, err := l.store.GetByID(ctx, jobID)
	if err != nil {
		l.logger.Error("Failed to load job", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	if job == nil {
		l.logger.Warn("Job does not exist", zap.String("job_id", jobID))
		return
	}

	if err := l.store.MarkProcessing(ctx, jobID); err != nil {
		l.logger.Debug("Job not claimable",
			zap.String("job_id", jobID),
			zap.String("status", job.Status),
			zap.Error(err))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.fail(ctx, jobID, fmt.Sprintf("panic: %v", r))
		}
	}()

	result, err := l.pipeline.Run(ctx, job.PDFPath)
	if err != nil {
		l.fail(ctx, jobID, err.Error())
		return
	}

	payload, err := json.Marshal(models.JobResult{
		InvoiceID:  result.Invoice.ID,
		ParserUsed: result.ParserUsed,
		Confidence: result.Confidence,
		Vendor:     result.Invoice.VendorNormalized,
	})
	if err != nil {
		l.fail(ctx, jobID, fmt.Sprintf("failed to encode result: %v", err))
		return
	}

	if err := l.store.MarkComplete(ctx, jobID, payload); err != nil {
		l.logger.Error("Failed to complete job", zap.String("job_id", jobID), zap.Error(err))
		l.fail(ctx, jobID, fmt.Sprintf("failed to record result: %v", err))
		return
	}

	l.logger.Info("Job complete",
		zap.String("job_id", jobID),
		zap.String("invoice_id", result.Invoice.ID))
}

func (l *Ledger) fail(ctx context.Context, jobID, message string) {
	if err := l.store.MarkError(ctx, jobID, message); err != nil {
		l.logger.Error("Failed to record job error",
			zap.String("job_id", jobID),
			zap.String("message", message),
			zap.Error(err))
		return
	}
	l.logger.Warn("Job failed",
		zap.String("job_id", jobID),
		zap.String("message", message))
}
