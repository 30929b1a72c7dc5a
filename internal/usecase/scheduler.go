package usecase

import (
	"context"
	"time"

	"AdvisoryDispatch/internal/ports"
)

// BatchTrigger wires the daily trigger with the pipeline use case.
type BatchTrigger struct {
	driver   ports.Scheduler
	pipeline *Pipeline
}

// NewBatchTrigger returns a helper to start/stop the recurring daily run.
func NewBatchTrigger(driver ports.Scheduler, pipeline *Pipeline) *BatchTrigger {
	return &BatchTrigger{driver: driver, pipeline: pipeline}
}

// Start registers the pipeline with the provided trigger.
func (b *BatchTrigger) Start(ctx context.Context) error {
	if b.driver == nil || b.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		_ = b.pipeline.ProcessDay(ctx, trigger)
	}

	return b.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying trigger.
func (b *BatchTrigger) Stop(ctx context.Context) error {
	if b.driver == nil {
		return nil
	}

	return b.driver.Stop(ctx)
}
