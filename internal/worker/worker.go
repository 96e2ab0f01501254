// Package worker implements the Protection Worker's outer loop
// (spec §4.4): a single cooperative loop per process that takes one
// envelope at a time, runs the five-stage pipeline, and writes back
// terminal state, generalized from an in-process job channel to a
// queue.Queue abstraction over a real broker.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lore-anchor/protect/internal/apperr"
	"github.com/lore-anchor/protect/internal/catalog"
	"github.com/lore-anchor/protect/internal/metrics"
	"github.com/lore-anchor/protect/internal/perturb"
	"github.com/lore-anchor/protect/internal/pipeline"
	"github.com/lore-anchor/protect/internal/provenance"
	"github.com/lore-anchor/protect/internal/queue"
	"github.com/lore-anchor/protect/internal/storage"
)

// Config bundles the collaborators and tunables the worker needs.
type Config struct {
	Repo          *catalog.Repository
	Queue         queue.Queue
	Store         storage.ObjectStore
	Signer        *provenance.Signer
	PerturbConfig perturb.Config
}

// Worker runs the outer loop for one process. Per-process concurrency
// is 1 (spec §4.4: "the pipeline is compute-bound; per-process
// concurrency = 1 simplifies resource accounting").
type Worker struct {
	cfg       Config
	workerID  string
	startedAt time.Time

	processing atomic.Bool
	processed  atomic.Int64
	failed     atomic.Int64
}

func New(cfg Config) *Worker {
	return &Worker{
		cfg:       cfg,
		workerID:  uuid.NewString(),
		startedAt: time.Now().UTC(),
	}
}

// Run blocks, processing one envelope at a time, until ctx is cancelled
// (spec §4.4 step 9: "loop until a shutdown signal is observed, then
// drain the in-flight task... and exit"). Because each iteration only
// starts a new take after the prior task fully completes, cancellation
// observed between iterations never needs to interrupt an in-flight
// pipeline run.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			slog.Info("worker shutting down", "worker_id", w.workerID)
			return
		}

		env, err := w.cfg.Queue.Take(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) {
				continue
			}
			if raw, ok := queue.RawPayload(err); ok {
				slog.Warn("malformed envelope, diverting to dead-letter queue", "error", err)
				_ = w.cfg.Queue.PushDeadLetter(ctx, raw)
				metrics.DeadLettersTotal.Inc()
				continue
			}
			slog.Error("queue take failed", "error", err)
			continue
		}

		w.processOne(ctx, env)
	}
}

// processOne implements steps 3-8 of the outer loop for a single
// envelope.
func (w *Worker) processOne(ctx context.Context, env queue.Envelope) {
	w.processing.Store(true)
	defer w.processing.Store(false)

	img, err := w.cfg.Repo.GetImage(ctx, env.ImageID)
	if err != nil {
		slog.Error("read image row failed", "image_id", env.ImageID, "error", err)
		return
	}
	if img == nil {
		slog.Warn("envelope references unknown image, diverting to dead-letter queue", "image_id", env.ImageID)
		if raw, err := env.Marshal(); err == nil {
			_ = w.cfg.Queue.PushDeadLetter(ctx, raw)
			metrics.DeadLettersTotal.Inc()
		}
		return
	}

	// Idempotency / dedup gate (spec §4.4 step 4): a redelivery or a
	// duplicate caused by a broker crash window is absorbed here rather
	// than reprocessed.
	if img.Status == catalog.StatusProcessing || img.Status == catalog.StatusCompleted {
		slog.Info("skipping already in-flight or completed image", "image_id", img.ImageID, "status", img.Status)
		return
	}

	if err := w.cfg.Repo.UpdateStatus(ctx, img.ImageID, catalog.StatusProcessing); err != nil {
		if apperr.Is(err, apperr.Conflict) {
			slog.Info("lost the transition race to another worker", "image_id", img.ImageID)
			return
		}
		slog.Error("transition to processing failed", "image_id", img.ImageID, "error", err)
		return
	}

	taskID := uuid.NewString()
	task := &catalog.Task{
		TaskID:    taskID,
		ImageID:   img.ImageID,
		WorkerID:  w.workerID,
		StartedAt: time.Now().UTC(),
	}
	if err := withRetry(ctx, func() error { return w.cfg.Repo.InsertTask(ctx, task) }); err != nil {
		slog.Error("insert task failed", "image_id", img.ImageID, "error", err)
		return
	}

	pipelineCfg := pipeline.Config{Store: w.cfg.Store, Signer: w.cfg.Signer, PerturbConfig: w.cfg.PerturbConfig}
	protectedKey, watermarkID, manifest, runErr := pipeline.Run(ctx, pipelineCfg, img.ImageID, img.OriginalKey)

	// Terminal write-backs run against a context detached from the
	// outer loop's shutdown signal (spec §4.4 step 9: "drain the
	// in-flight task... and exit"). ctx gates whether a new Take
	// starts; it must not also abort the already-in-flight task's
	// final Catalog write, or a shutdown mid-pipeline leaves the Image
	// stuck in processing with no queue redelivery to recover it.
	writeCtx, cancelWrite := context.WithTimeout(context.Background(), writeBackTimeout)
	defer cancelWrite()

	if runErr != nil {
		w.failed.Add(1)
		metrics.ImagesFailedTotal.Inc()
		errLog := catalog.TruncateErrorLog(runErr.Error())
		if err := withRetry(writeCtx, func() error { return w.cfg.Repo.SetFailed(writeCtx, img.ImageID) }); err != nil && !apperr.Is(err, apperr.Conflict) {
			slog.Error("set failed write-back failed", "image_id", img.ImageID, "error", err)
		}
		if err := withRetry(writeCtx, func() error { return w.cfg.Repo.FailTask(writeCtx, taskID, errLog) }); err != nil {
			slog.Error("fail task write-back failed", "task_id", taskID, "error", err)
		}
		slog.Warn("pipeline failed", "image_id", img.ImageID, "error", errLog)
		return
	}

	w.processed.Add(1)
	metrics.ImagesProcessedTotal.Inc()
	if err := withRetry(writeCtx, func() error {
		return w.cfg.Repo.SetProtected(writeCtx, img.ImageID, protectedKey, watermarkID, manifest)
	}); err != nil && !apperr.Is(err, apperr.Conflict) {
		slog.Error("set protected write-back failed", "image_id", img.ImageID, "error", err)
	}
	if err := withRetry(writeCtx, func() error { return w.cfg.Repo.CompleteTask(writeCtx, taskID) }); err != nil {
		slog.Error("complete task write-back failed", "task_id", taskID, "error", err)
	}
	slog.Info("pipeline succeeded", "image_id", img.ImageID, "protected_key", protectedKey)
}

// Snapshot is the data behind the worker's /health response
// (spec §4.4 "Health endpoint").
type Snapshot struct {
	Status          string `json:"status"`
	WorkerID        string `json:"worker_id"`
	Processing      bool   `json:"processing"`
	ImagesProcessed int64  `json:"images_processed"`
	ImagesFailed    int64  `json:"images_failed"`
	UptimeSeconds   int64  `json:"uptime_s"`
}

func (w *Worker) Snapshot() Snapshot {
	return Snapshot{
		Status:          "ok",
		WorkerID:        w.workerID,
		Processing:      w.processing.Load(),
		ImagesProcessed: w.processed.Load(),
		ImagesFailed:    w.failed.Load(),
		UptimeSeconds:   int64(time.Since(w.startedAt).Seconds()),
	}
}

// writeBackTimeout bounds the detached context a terminal write-back
// retries against, so a Catalog outage during shutdown still can't
// hang the process forever.
const writeBackTimeout = 30 * time.Second

// withRetry is the Catalog write-back's bounded-exponential retry
// (spec §7: "3 attempts, jittered 1-10s"). apperr.Conflict is not
// retried: a lost transition race is a terminal, expected outcome, not
// a transient dependency failure.
func withRetry(ctx context.Context, fn func() error) error {
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if apperr.Is(err, apperr.Conflict) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}
		backoff := jitteredBackoff(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("catalog write-back failed after %d attempts: %w", maxAttempts, lastErr)
}

// jitteredBackoff returns a delay in [1s, 10s), doubling the floor with
// each attempt, plus up to 1s of jitter, capped at the ceiling. No
// dedicated backoff dependency is introduced for this: none appears in
// the example corpus for this exact shape (see DESIGN.md).
func jitteredBackoff(attempt int) time.Duration {
	floor := time.Second * time.Duration(1<<uint(attempt))
	if floor > 9*time.Second {
		floor = 9 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	d := floor + jitter
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}
