package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevinshaw/invoice-intel/internal/models"
)

func newQueuedJob(t *testing.T, repo *JobRepository) *models.ProcessingJob {
	t.Helper()
	job := &models.ProcessingJob{
		JobID:     uuid.NewString(),
		Status:    models.JobStatusQueued,
		PDFPath:   "/uploads/doc.pdf",
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), job))
	return job
}

func TestJob_Lifecycle(t *testing.T) {
	repo := NewJobRepository(newTestDB(t), zap.NewNop())
	ctx := context.Background()
	job := newQueuedJob(t, repo)

	require.NoError(t, repo.MarkProcessing(ctx, job.JobID))
	require.NoError(t, repo.MarkComplete(ctx, job.JobID, json.RawMessage(`{"invoice_id":"inv-1"}`)))

	got, err := repo.GetByID(ctx, job.JobID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.JobStatusComplete, got.Status)
	assert.True(t, got.Terminal())
	assert.NotNil(t, got.CompletedAt)
	assert.JSONEq(t, `{"invoice_id":"inv-1"}`, string(got.Result))
}

func TestJob_ErrorPath(t *testing.T) {
	repo := NewJobRepository(newTestDB(t), zap.NewNop())
	ctx := context.Background()
	job := newQueuedJob(t, repo)

	require.NoError(t, repo.MarkProcessing(ctx, job.JobID))
	require.NoError(t, repo.MarkError(ctx, job.JobID, "both strategies failed"))

	got, err := repo.GetByID(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, got.Status)
	assert.Equal(t, "both strategies failed", got.ErrorMessage)
}

func TestJob_TerminalIsFinal(t *testing.T) {
	repo := NewJobRepository(newTestDB(t), zap.NewNop())
	ctx := context.Background()
	job := newQueuedJob(t, repo)

	require.NoError(t, repo.MarkProcessing(ctx, job.JobID))
	require.NoError(t, repo.MarkError(ctx, job.JobID, "boom"))

	// No transition leaves a terminal state
	assert.ErrorIs(t, repo.MarkProcessing(ctx, job.JobID), ErrInvalidTransition)
	assert.ErrorIs(t, repo.MarkComplete(ctx, job.JobID, nil), ErrInvalidTransition)
	assert.ErrorIs(t, repo.MarkError(ctx, job.JobID, "again"), ErrInvalidTransition)

	got, err := repo.GetByID(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, got.Status)
	assert.Equal(t, "boom", got.ErrorMessage)
}

func TestJob_SingleClaim(t *testing.T) {
	repo := NewJobRepository(newTestDB(t), zap.NewNop())
	ctx := context.Background()
	job := newQueuedJob(t, repo)

	require.NoError(t, repo.MarkProcessing(ctx, job.JobID))
	// A second claim must fail: the job is no longer queued
	assert.ErrorIs(t, repo.MarkProcessing(ctx, job.JobID), ErrInvalidTransition)
}

func TestJob_MarkStale(t *testing.T) {
	repo := NewJobRepository(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	stuck := &models.ProcessingJob{
		JobID:     uuid.NewString(),
		Status:    models.JobStatusQueued,
		PDFPath:   "/uploads/stuck.pdf",
		StartedAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, repo.Create(ctx, stuck))
	require.NoError(t, repo.MarkProcessing(ctx, stuck.JobID))

	fresh := newQueuedJob(t, repo)
	require.NoError(t, repo.MarkProcessing(ctx, fresh.JobID))
	queued := newQueuedJob(t, repo)

	n, err := repo.MarkStale(ctx, time.Now().UTC().Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, stuck.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, got.Status)
	assert.Equal(t, "processing timed out", got.ErrorMessage)
	require.NotNil(t, got.CompletedAt)

	got, err = repo.GetByID(ctx, fresh.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, got.Status)

	got, err = repo.GetByID(ctx, queued.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, got.Status)
}

func TestJob_NextQueued(t *testing.T) {
	repo := NewJobRepository(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	first := newQueuedJob(t, repo)
	second := newQueuedJob(t, repo)
	require.NoError(t, repo.MarkProcessing(ctx, first.JobID))

	queued, err := repo.NextQueued(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, second.JobID, queued[0].JobID)
}
