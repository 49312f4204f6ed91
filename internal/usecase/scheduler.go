package usecase

import (
	"context"
	"time"

	"ReviewSentinel/internal/ports"
)

// Worker binds the interval driver to the pipeline for background mode.
type Worker struct {
	driver   ports.Scheduler
	pipeline *Pipeline
}

// NewWorker returns a helper to start/stop recurring runs.
func NewWorker(driver ports.Scheduler, pipeline *Pipeline) *Worker {
	return &Worker{driver: driver, pipeline: pipeline}
}

// Start registers the pipeline with the provided scheduler. Run-level errors
// are already logged by the pipeline; the worker keeps ticking through them.
func (w *Worker) Start(ctx context.Context) error {
	if w.driver == nil || w.pipeline == nil {
		return nil
	}

	job := func(time.Time) {
		_, _ = w.pipeline.Run(ctx)
	}

	return w.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (w *Worker) Stop(ctx context.Context) error {
	if w.driver == nil {
		return nil
	}
	return w.driver.Stop(ctx)
}
