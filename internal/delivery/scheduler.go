package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"AdvisoryDispatch/internal/channel"
	"AdvisoryDispatch/internal/config"
	"AdvisoryDispatch/internal/domain"
	"AdvisoryDispatch/internal/ports"
)

// ErrInFlight is returned when a cancellation targets a job whose dispatch is
// already running; the send must resolve before cancellation can be honored.
var ErrInFlight = errors.New("job is in flight and cannot be cancelled")

// ErrUnknownJob is returned for job ids the scheduler has never seen.
var ErrUnknownJob = errors.New("unknown job id")

// Stats is the aggregate statistics surface for operational dashboards.
type Stats struct {
	Queued    int
	InFlight  int
	Succeeded int64
	Failed    int64
	Retried   int64
	Cancelled int64
}

// SuccessRate is the share of terminal jobs that succeeded.
func (s Stats) SuccessRate() float64 {
	terminal := s.Succeeded + s.Failed
	if terminal == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(terminal)
}

// Scheduler drains the queue under a concurrency ceiling and a dispatch rate
// floor, re-enqueueing transient failures with exponential backoff.
type Scheduler struct {
	queue      *Queue
	dispatcher ports.Dispatcher
	store      ports.DeliveryStore
	alerts     ports.AlertNotifier
	cfg        config.DeliveryConfig
	logger     *slog.Logger

	sem     *semaphore.Weighted
	limiter *rate.Limiter

	mu          sync.Mutex
	inFlight    map[string]struct{}
	lastResults map[string]domain.DeliveryResult
	succeeded   int64
	failed      int64
	retried     int64
	cancelled   int64
	onResult    func(domain.DeliveryResult)

	wg sync.WaitGroup
}

// NewScheduler wires the drain loop. store and alerts may be nil.
func NewScheduler(queue *Queue, dispatcher ports.Dispatcher, store ports.DeliveryStore, alerts ports.AlertNotifier, cfg config.DeliveryConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollIntervalMS <= 0 {
		cfg.PollIntervalMS = 50
	}
	minDelay := time.Duration(cfg.MinDispatchDelayMS) * time.Millisecond
	return &Scheduler{
		queue:       queue,
		dispatcher:  dispatcher,
		store:       store,
		alerts:      alerts,
		cfg:         cfg,
		logger:      logger,
		sem:         semaphore.NewWeighted(int64(cfg.Concurrency)),
		limiter:     rate.NewLimiter(rate.Every(minDelay), 1),
		inFlight:    map[string]struct{}{},
		lastResults: map[string]domain.DeliveryResult{},
	}
}

// OnResult registers a callback invoked for every recorded delivery result.
func (s *Scheduler) OnResult(fn func(domain.DeliveryResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResult = fn
}

// EnqueueBatch schedules the daily batch with the configured jitter window.
func (s *Scheduler) EnqueueBatch(jobs []*domain.DeliveryJob) {
	jitter := time.Duration(s.cfg.JitterWindowSec) * time.Second
	s.queue.EnqueueBatch(jobs, jitter)
	s.logger.Info("batch enqueued", "jobs", len(jobs), "jitter_window", jitter)
}

// EnqueueImmediate schedules one out-of-band job for dispatch as soon as
// capacity allows, bypassing the batch jitter.
func (s *Scheduler) EnqueueImmediate(job *domain.DeliveryJob) {
	job.TargetTime = time.Now()
	s.queue.Enqueue(job)
	s.logger.Info("immediate job enqueued", "job", job.ID, "priority", job.Priority.String())
}

// Run drains the queue until ctx is cancelled, then waits for in-flight
// dispatches to resolve.
func (s *Scheduler) Run(ctx context.Context) error {
	poll := time.Duration(s.cfg.PollIntervalMS) * time.Millisecond
	s.logger.Info("scheduler started",
		"concurrency", s.cfg.Concurrency,
		"min_dispatch_delay_ms", s.cfg.MinDispatchDelayMS)

	for {
		if ctx.Err() != nil {
			break
		}

		// Hold a concurrency slot before touching the queue so a popped job
		// is never stranded waiting for capacity.
		if !s.sem.TryAcquire(1) {
			if !sleepCtx(ctx, poll) {
				break
			}
			continue
		}

		job, ok := s.queue.PopDue(time.Now())
		if !ok {
			s.sem.Release(1)
			if !sleepCtx(ctx, poll) {
				break
			}
			continue
		}

		// Inter-dispatch floor, independent of the concurrency ceiling.
		if err := s.limiter.Wait(ctx); err != nil {
			s.queue.Enqueue(job)
			s.sem.Release(1)
			break
		}

		s.wg.Add(1)
		go s.dispatch(ctx, job)
	}

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) dispatch(ctx context.Context, job *domain.DeliveryJob) {
	defer s.wg.Done()
	defer s.sem.Release(1)

	s.mu.Lock()
	job.Status = domain.JobInFlight
	s.inFlight[job.ID] = struct{}{}
	s.mu.Unlock()

	sendCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.SendTimeoutSec)*time.Second)
	messageID, err := s.dispatcher.Dispatch(sendCtx, *job)
	cancel()

	s.mu.Lock()
	delete(s.inFlight, job.ID)
	s.mu.Unlock()

	attempt := job.RetryCount + 1
	now := time.Now()

	if err == nil {
		job.Status = domain.JobSucceeded
		s.addSucceeded()
		s.record(ctx, domain.DeliveryResult{
			JobID:     job.ID,
			Status:    domain.ResultSuccess,
			MessageID: messageID,
			Attempt:   attempt,
			Timestamp: now,
		})
		return
	}

	if channel.IsPermanent(err) {
		s.terminate(ctx, job, attempt, now, err, "permanent channel error")
		return
	}

	// Transient failure: schedule the Nth retry at failure time plus
	// baseDelay * 2^N, unless retries are exhausted.
	s.record(ctx, domain.DeliveryResult{
		JobID:     job.ID,
		Status:    domain.ResultRetry,
		Error:     err.Error(),
		Attempt:   attempt,
		Timestamp: now,
	})
	s.addRetried()

	job.RetryCount++
	if job.RetryCount >= job.MaxRetries {
		s.terminate(ctx, job, attempt, now, err, "retries exhausted")
		return
	}

	backoff := time.Duration(s.cfg.BaseRetryDelaySec) * time.Second << uint(job.RetryCount)
	job.Status = domain.JobRetryPending
	job.TargetTime = now.Add(backoff)
	s.logger.Warn("dispatch failed, retrying",
		"job", job.ID, "attempt", attempt, "retry_in", backoff, "error", err)
	s.queue.Enqueue(job)
}

// terminate marks the job terminally failed, records the authoritative
// result, and surfaces it to the operator. Terminal failures are never
// dropped silently.
func (s *Scheduler) terminate(ctx context.Context, job *domain.DeliveryJob, attempt int, now time.Time, cause error, reason string) {
	job.Status = domain.JobFailed
	s.addFailed()
	s.record(ctx, domain.DeliveryResult{
		JobID:     job.ID,
		Status:    domain.ResultFailed,
		Error:     cause.Error(),
		Attempt:   attempt,
		Timestamp: now,
	})

	s.logger.Error("delivery terminally failed",
		"job", job.ID, "advisor", job.AdvisorID, "reason", reason, "error", cause)

	if s.alerts != nil {
		msg := fmt.Sprintf("delivery %s for advisor %s failed (%s): %v", job.ID, job.AdvisorID, reason, cause)
		if alertErr := s.alerts.Alert(ctx, msg); alertErr != nil {
			s.logger.Warn("failure alert not delivered", "job", job.ID, "error", alertErr)
		}
	}
}

func (s *Scheduler) record(ctx context.Context, result domain.DeliveryResult) {
	s.mu.Lock()
	s.lastResults[result.JobID] = result
	cb := s.onResult
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveResult(ctx, result); err != nil {
			s.logger.Warn("result not persisted", "job", result.JobID, "error", err)
		}
	}
	if cb != nil {
		cb(result)
	}
}

// Cancel removes a waiting job. In-flight dispatches must resolve first and
// return ErrInFlight.
func (s *Scheduler) Cancel(jobID string) error {
	if _, err := s.queue.Cancel(jobID); err == nil {
		s.mu.Lock()
		s.cancelled++
		s.mu.Unlock()
		s.logger.Info("job cancelled", "job", jobID)
		return nil
	}

	s.mu.Lock()
	_, inFlight := s.inFlight[jobID]
	s.mu.Unlock()
	if inFlight {
		return ErrInFlight
	}
	return ErrUnknownJob
}

// LastResult returns the authoritative result for a job, falling back to the
// store for jobs recorded before a restart.
func (s *Scheduler) LastResult(ctx context.Context, jobID string) (domain.DeliveryResult, error) {
	s.mu.Lock()
	res, ok := s.lastResults[jobID]
	s.mu.Unlock()
	if ok {
		return res, nil
	}

	if s.store != nil {
		stored, err := s.store.LastResult(ctx, jobID)
		if err != nil {
			return domain.DeliveryResult{}, fmt.Errorf("load last result: %w", err)
		}
		return stored, nil
	}
	return domain.DeliveryResult{}, ErrUnknownJob
}

// Stats returns the aggregate counters for dashboards.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Queued:    s.queue.Len(),
		InFlight:  len(s.inFlight),
		Succeeded: s.succeeded,
		Failed:    s.failed,
		Retried:   s.retried,
		Cancelled: s.cancelled,
	}
}

func (s *Scheduler) addSucceeded() { s.mu.Lock(); s.succeeded++; s.mu.Unlock() }
func (s *Scheduler) addFailed()    { s.mu.Lock(); s.failed++; s.mu.Unlock() }
func (s *Scheduler) addRetried()   { s.mu.Lock(); s.retried++; s.mu.Unlock() }

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
