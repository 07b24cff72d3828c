package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kevinshaw/invoice-intel/internal/models"
	"go.uber.org/zap"
)

// Worker drains queued jobs in the background. It polls rather than listens:
// sqlite has no notification channel, and at this queue depth a short poll
// interval is indistinguishable from push.
type Worker struct {
	ledger *Ledger
	store  JobStore
	logger *zap.Logger

	pollInterval time.Duration
	batchSize    int
	jobTimeout   time.Duration

	mu        sync.RWMutex
	isRunning bool
	cancel    context.CancelFunc
	processed int64
	failed    int64
}

// WorkerStats is a point-in-time snapshot of worker counters
type WorkerStats struct {
	Running   bool  `json:"running"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

func NewWorker(ledger *Ledger, store JobStore, logger *zap.Logger) *Worker {
	return &Worker{
		ledger:       ledger,
		store:        store,
		logger:       logger,
		pollInterval: 2 * time.Second,
		batchSize:    5,
		jobTimeout:   5 * time.Minute,
	}
}

// Start launches the polling loop
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("job worker is already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true

	w.logger.Info("Job worker started",
		zap.Duration("poll_interval", w.pollInterval),
		zap.Int("batch_size", w.batchSize))

	// The loop owns this ctx; a later Stop/Start pair gets a fresh one.
	go w.pollLoop(ctx)

	return nil
}

// Stop cancels the polling loop. Jobs already claimed keep running until
// their context expires.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return
	}

	w.isRunning = false
	if w.cancel != nil {
		w.cancel()
	}

	w.logger.Info("Job worker stopped")
}

// Name returns the worker name for identification
func (w *Worker) Name() string {
	return "JobWorker"
}

// Stats reports the worker's counters
func (w *Worker) Stats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerStats{
		Running:   w.isRunning,
		Processed: w.processed,
		Failed:    w.failed,
	}
}

func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Drain anything left over from a previous run before the first tick
	w.processQueued(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Poll loop context cancelled")
			return

		case <-ticker.C:
			w.sweepStale(ctx)
			w.processQueued(ctx)
		}
	}
}

func (w *Worker) processQueued(ctx context.Context) {
	queued, err := w.store.NextQueued(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("Failed to list queued jobs", zap.Error(err))
		return
	}

	for _, job := range queued {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
		w.ledger.Run(jobCtx, job.JobID)
		cancel()

		w.record(ctx, job.JobID)
	}
}

// sweepStale fails jobs stuck in processing, such as when the terminal
// transition itself hit a transient database error. The cutoff leaves a
// full job timeout of slack past submission.
func (w *Worker) sweepStale(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-(w.jobTimeout + w.pollInterval))
	n, err := w.store.MarkStale(ctx, cutoff)
	if err != nil {
		w.logger.Error("Failed to sweep stale jobs", zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Warn("Failed stale processing jobs", zap.Int64("count", n))
	}
}

func (w *Worker) record(ctx context.Context, jobID string) {
	job, err := w.store.GetByID(ctx, jobID)
	if err != nil || job == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	switch job.Status {
	case models.JobStatusComplete:
		w.processed++
	case models.JobStatusError:
		w.failed++
	}
}
