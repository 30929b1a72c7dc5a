package delivery

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"AdvisoryDispatch/internal/domain"
)

// ErrNotQueued is returned when a cancellation targets a job that is no
// longer waiting in the queue (in-flight or already terminal).
var ErrNotQueued = errors.New("job is not waiting in the queue")

// Queue is a priority-ordered, time-aware job list. Ordering is total:
// priority first (high before low), ascending target time within a tier.
// Insertion is an O(n) scan; batch sizes are bounded by the daily advisor
// population, so correctness and simplicity win over a heap here.
type Queue struct {
	mu   sync.Mutex
	jobs []*domain.DeliveryJob
	rng  *rand.Rand
}

// NewQueue builds an empty queue.
func NewQueue() *Queue {
	return &Queue{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Enqueue inserts one job preserving the priority/time ordering.
func (q *Queue) Enqueue(job *domain.DeliveryJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.insert(job)
}

// EnqueueBatch inserts the daily batch, advancing each job's target time by a
// random offset inside the jitter window so the batch does not hit the
// channel as one synchronized burst.
func (q *Queue) EnqueueBatch(jobs []*domain.DeliveryJob, jitterWindow time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, job := range jobs {
		if jitterWindow > 0 {
			job.TargetTime = job.TargetTime.Add(time.Duration(q.rng.Int63n(int64(jitterWindow))))
		}
		q.insert(job)
	}
}

// insert places the job at its ordered position. Caller holds q.mu.
func (q *Queue) insert(job *domain.DeliveryJob) {
	job.Status = domain.JobPending

	pos := len(q.jobs)
	for i, existing := range q.jobs {
		if job.Priority > existing.Priority ||
			(job.Priority == existing.Priority && job.TargetTime.Before(existing.TargetTime)) {
			pos = i
			break
		}
	}

	q.jobs = append(q.jobs, nil)
	copy(q.jobs[pos+1:], q.jobs[pos:])
	q.jobs[pos] = job
}

// PopDue removes and returns the highest-priority job whose target time has
// arrived. The scan walks the ordered list, so the first due job found is the
// best-priority, earliest-due candidate; a not-yet-due high-priority job does
// not block a due lower-priority one.
func (q *Queue) PopDue(now time.Time) (*domain.DeliveryJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, job := range q.jobs {
		if !job.TargetTime.After(now) {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return job, true
		}
	}
	return nil, false
}

// Cancel removes a waiting job. Jobs already handed to a dispatch cannot be
// cancelled mid-call and return ErrNotQueued.
func (q *Queue) Cancel(jobID string) (*domain.DeliveryJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, job := range q.jobs {
		if job.ID == jobID {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			job.Status = domain.JobCancelled
			return job, nil
		}
	}
	return nil, ErrNotQueued
}

// Len reports how many jobs are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Jobs returns a snapshot of the waiting jobs in dispatch order.
func (q *Queue) Jobs() []domain.DeliveryJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.DeliveryJob, 0, len(q.jobs))
	for _, job := range q.jobs {
		out = append(out, *job)
	}
	return out
}
