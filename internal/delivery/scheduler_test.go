package delivery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"AdvisoryDispatch/internal/channel"
	"AdvisoryDispatch/internal/config"
	"AdvisoryDispatch/internal/domain"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	calls    int
	fn       func(job domain.DeliveryJob) (string, error)
	sleep    time.Duration
	active   int64
	maxSeen  int64
	lastJobs []string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, job domain.DeliveryJob) (string, error) {
	cur := atomic.AddInt64(&f.active, 1)
	for {
		max := atomic.LoadInt64(&f.maxSeen)
		if cur <= max || atomic.CompareAndSwapInt64(&f.maxSeen, max, cur) {
			break
		}
	}
	if f.sleep > 0 {
		time.Sleep(f.sleep)
	}
	atomic.AddInt64(&f.active, -1)

	f.mu.Lock()
	f.calls++
	f.lastJobs = append(f.lastJobs, job.ID)
	f.mu.Unlock()

	if f.fn != nil {
		return f.fn(job)
	}
	return "msg-" + job.ID, nil
}

func (f *fakeDispatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAlerts struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeAlerts) Alert(ctx context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeAlerts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func testDeliveryConfig() config.DeliveryConfig {
	return config.DeliveryConfig{
		Concurrency:        4,
		MinDispatchDelayMS: 0,
		PollIntervalMS:     5,
		BaseRetryDelaySec:  0,
		MaxRetries:         3,
		JitterWindowSec:    0,
		SendTimeoutSec:     5,
	}
}

// collector gathers results per status until an expected terminal result
// arrives.
type collector struct {
	mu      sync.Mutex
	results []domain.DeliveryResult
	done    chan struct{}
	want    domain.ResultStatus
}

func newCollector(want domain.ResultStatus) *collector {
	return &collector{done: make(chan struct{}), want: want}
}

func (c *collector) collect(res domain.DeliveryResult) {
	c.mu.Lock()
	c.results = append(c.results, res)
	terminal := res.Status == c.want
	c.mu.Unlock()
	if terminal {
		close(c.done)
	}
}

func (c *collector) byStatus(status domain.ResultStatus) []domain.DeliveryResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.DeliveryResult
	for _, r := range c.results {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

func runScheduler(t *testing.T, s *Scheduler) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(finished)
	}()
	return func() {
		cancel()
		select {
		case <-finished:
		case <-time.After(5 * time.Second):
			t.Fatalf("scheduler did not stop")
		}
	}
}

func TestSuccessfulDispatchRecordsResult(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	col := newCollector(domain.ResultSuccess)
	s := NewScheduler(NewQueue(), d, nil, nil, testDeliveryConfig(), nil)
	s.OnResult(col.collect)

	s.EnqueueImmediate(job("ok", domain.PriorityNormal, time.Now()))
	stop := runScheduler(t, s)
	defer stop()

	select {
	case <-col.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("no success result recorded")
	}

	res, err := s.LastResult(context.Background(), "ok")
	if err != nil {
		t.Fatalf("last result: %v", err)
	}
	if res.Status != domain.ResultSuccess || res.MessageID != "msg-ok" || res.Attempt != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := s.Stats().Succeeded; got != 1 {
		t.Fatalf("expected 1 success, got %d", got)
	}
}

func TestTransientFailuresRetryUntilExhausted(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{fn: func(domain.DeliveryJob) (string, error) {
		return "", channel.Transient("rate-limited", errors.New("429 too many requests"))
	}}
	alerts := &fakeAlerts{}
	col := newCollector(domain.ResultFailed)
	s := NewScheduler(NewQueue(), d, nil, alerts, testDeliveryConfig(), nil)
	s.OnResult(col.collect)

	s.EnqueueImmediate(job("flaky", domain.PriorityNormal, time.Now()))
	stop := runScheduler(t, s)
	defer stop()

	select {
	case <-col.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("job never failed terminally")
	}

	if got := d.callCount(); got != 3 {
		t.Fatalf("expected 3 dispatch attempts, got %d", got)
	}
	retries := col.byStatus(domain.ResultRetry)
	if len(retries) != 3 {
		t.Fatalf("expected 3 retry results, got %d", len(retries))
	}
	for i, r := range retries {
		if r.Attempt != i+1 {
			t.Fatalf("retry %d carries attempt %d", i, r.Attempt)
		}
	}
	failed := col.byStatus(domain.ResultFailed)
	if len(failed) != 1 || failed[0].Attempt != 3 {
		t.Fatalf("expected one terminal failure on attempt 3, got %+v", failed)
	}
	if alerts.count() != 1 {
		t.Fatalf("terminal failure must raise exactly one alert, got %d", alerts.count())
	}

	stats := s.Stats()
	if stats.Retried != 3 || stats.Failed != 1 || stats.Succeeded != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRetryBackoffDoublesPerAttempt(t *testing.T) {
	t.Parallel()

	cfg := testDeliveryConfig()
	cfg.BaseRetryDelaySec = 4

	q := NewQueue()
	d := &fakeDispatcher{fn: func(domain.DeliveryJob) (string, error) {
		return "", channel.Transient("timeout", errors.New("upstream slow"))
	}}
	col := newCollector(domain.ResultRetry)
	s := NewScheduler(q, d, nil, nil, cfg, nil)
	s.OnResult(col.collect)

	s.EnqueueImmediate(job("slow", domain.PriorityNormal, time.Now()))
	stop := runScheduler(t, s)

	select {
	case <-col.done:
	case <-time.After(5 * time.Second):
		stop()
		t.Fatalf("no retry result recorded")
	}
	// Stopping waits out the dispatch goroutine, so the re-enqueue below is
	// visible afterwards.
	stop()

	jobs := q.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("expected the job back in the queue, len=%d", len(jobs))
	}
	requeued := jobs[0]
	if requeued.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", requeued.RetryCount)
	}
	if requeued.Status != domain.JobPending {
		t.Fatalf("requeued job must be pending, got %s", requeued.Status)
	}

	// First retry lands at failure time plus base * 2^1.
	retry := col.byStatus(domain.ResultRetry)[0]
	if got := requeued.TargetTime.Sub(retry.Timestamp); got != 8*time.Second {
		t.Fatalf("first retry scheduled %v after failure, want 8s", got)
	}
}

func TestPermanentErrorFailsWithoutRetry(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{fn: func(domain.DeliveryJob) (string, error) {
		return "", channel.Permanent("invalid-recipient", errors.New("destination does not exist"))
	}}
	alerts := &fakeAlerts{}
	col := newCollector(domain.ResultFailed)
	s := NewScheduler(NewQueue(), d, nil, alerts, testDeliveryConfig(), nil)
	s.OnResult(col.collect)

	s.EnqueueImmediate(job("dead", domain.PriorityNormal, time.Now()))
	stop := runScheduler(t, s)
	defer stop()

	select {
	case <-col.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("job never failed terminally")
	}

	if got := d.callCount(); got != 1 {
		t.Fatalf("permanent errors must not be retried, got %d attempts", got)
	}
	if got := col.byStatus(domain.ResultRetry); len(got) != 0 {
		t.Fatalf("unexpected retry results: %+v", got)
	}
	if alerts.count() != 1 {
		t.Fatalf("expected one alert, got %d", alerts.count())
	}
}

func TestConcurrencyCeilingHolds(t *testing.T) {
	t.Parallel()

	cfg := testDeliveryConfig()
	cfg.Concurrency = 2

	d := &fakeDispatcher{sleep: 30 * time.Millisecond}
	s := NewScheduler(NewQueue(), d, nil, nil, cfg, nil)

	var wg sync.WaitGroup
	wg.Add(6)
	s.OnResult(func(domain.DeliveryResult) { wg.Done() })

	now := time.Now()
	jobs := make([]*domain.DeliveryJob, 0, 6)
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		jobs = append(jobs, job(id, domain.PriorityNormal, now))
	}
	s.EnqueueBatch(jobs)

	stop := runScheduler(t, s)
	defer stop()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("batch did not drain")
	}

	if max := atomic.LoadInt64(&d.maxSeen); max > 2 {
		t.Fatalf("concurrency ceiling breached: %d simultaneous dispatches", max)
	}
	if got := s.Stats().Succeeded; got != 6 {
		t.Fatalf("expected 6 successes, got %d", got)
	}
}

func TestDispatchRateFloor(t *testing.T) {
	t.Parallel()

	cfg := testDeliveryConfig()
	cfg.MinDispatchDelayMS = 30

	d := &fakeDispatcher{}
	s := NewScheduler(NewQueue(), d, nil, nil, cfg, nil)

	var wg sync.WaitGroup
	wg.Add(3)
	s.OnResult(func(domain.DeliveryResult) { wg.Done() })

	now := time.Now()
	s.EnqueueBatch([]*domain.DeliveryJob{
		job("a", domain.PriorityNormal, now),
		job("b", domain.PriorityNormal, now),
		job("c", domain.PriorityNormal, now),
	})

	start := time.Now()
	stop := runScheduler(t, s)
	defer stop()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("batch did not drain")
	}

	// Three dispatches behind a 30ms floor span at least two full intervals.
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Fatalf("dispatches too close together: %v", elapsed)
	}
}

func TestCancelStates(t *testing.T) {
	t.Parallel()

	s := NewScheduler(NewQueue(), &fakeDispatcher{}, nil, nil, testDeliveryConfig(), nil)
	s.EnqueueBatch([]*domain.DeliveryJob{job("waiting", domain.PriorityNormal, time.Now().Add(time.Hour))})

	if err := s.Cancel("waiting"); err != nil {
		t.Fatalf("cancel queued job: %v", err)
	}
	if err := s.Cancel("never-seen"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}

	stats := s.Stats()
	if stats.Cancelled != 1 || stats.Queued != 0 {
		t.Fatalf("unexpected stats after cancel: %+v", stats)
	}
}

func TestSuccessRate(t *testing.T) {
	t.Parallel()

	if got := (Stats{}).SuccessRate(); got != 0 {
		t.Fatalf("empty stats must report 0, got %v", got)
	}
	if got := (Stats{Succeeded: 3, Failed: 1}).SuccessRate(); got != 0.75 {
		t.Fatalf("expected 0.75, got %v", got)
	}
}

func TestLastResultUnknownJob(t *testing.T) {
	t.Parallel()

	s := NewScheduler(NewQueue(), &fakeDispatcher{}, nil, nil, testDeliveryConfig(), nil)
	if _, err := s.LastResult(context.Background(), "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
}
