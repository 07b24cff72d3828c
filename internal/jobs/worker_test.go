package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kevinshaw/invoice-intel/internal/models"
	"github.com/kevinshaw/invoice-intel/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func completedResult() *pipeline.Result {
	return &pipeline.Result{
		Invoice: &models.Invoice{
			ID:               "inv-1",
			VendorNormalized: "Initech",
		},
		ParserUsed: models.ParserAI,
		Confidence: models.ConfidenceAIExtraction,
	}
}

func waitForStatus(t *testing.T, store JobStore, jobID, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		job, err := store.GetByID(context.Background(), jobID)
		return err == nil && job != nil && job.Status == want
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWorker_DrainsQueue(t *testing.T) {
	runner := new(MockRunner)
	ledger, store := newTestLedger(t, runner)
	runner.On("Run", mock.Anything, mock.Anything).Return(completedResult(), nil)

	jobID, err := ledger.Submit(context.Background(), "/tmp/a.pdf")
	require.NoError(t, err)

	w := NewWorker(ledger, store, zap.NewNop())
	w.pollInterval = 10 * time.Millisecond
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	waitForStatus(t, store, jobID, models.JobStatusComplete)

	require.Eventually(t, func() bool {
		return w.Stats().Processed >= 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWorker_RestartPicksUpNewJobs(t *testing.T) {
	runner := new(MockRunner)
	ledger, store := newTestLedger(t, runner)
	runner.On("Run", mock.Anything, mock.Anything).Return(completedResult(), nil)

	w := NewWorker(ledger, store, zap.NewNop())
	w.pollInterval = 10 * time.Millisecond

	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	jobID, err := ledger.Submit(context.Background(), "/tmp/b.pdf")
	require.NoError(t, err)

	waitForStatus(t, store, jobID, models.JobStatusComplete)
}

func TestWorker_StartWhileRunning(t *testing.T) {
	runner := new(MockRunner)
	ledger, store := newTestLedger(t, runner)

	w := NewWorker(ledger, store, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Error(t, w.Start(context.Background()))
}

func TestWorker_SweepsStuckProcessingJob(t *testing.T) {
	runner := new(MockRunner)
	ledger, store := newTestLedger(t, runner)
	ctx := context.Background()

	// Simulate a job whose terminal transition never landed
	stuck := &models.ProcessingJob{
		JobID:     uuid.NewString(),
		Status:    models.JobStatusQueued,
		PDFPath:   "/tmp/stuck.pdf",
		StartedAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, store.Create(ctx, stuck))
	require.NoError(t, store.MarkProcessing(ctx, stuck.JobID))

	w := NewWorker(ledger, store, zap.NewNop())
	w.pollInterval = 10 * time.Millisecond
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	waitForStatus(t, store, stuck.JobID, models.JobStatusError)

	job, err := store.GetByID(ctx, stuck.JobID)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ErrorMessage)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}
