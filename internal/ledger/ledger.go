package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"AdvisoryDispatch/internal/domain"
	"AdvisoryDispatch/internal/ports"
)

// Ledger tallies violation frequency for audit reporting and trend
// detection. Counters accumulate in memory and are periodically flushed
// through the delivery store; a flush resets deltas but keeps totals.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*domain.ViolationCount
	logger  *slog.Logger
}

// New builds an empty ledger.
func New(logger *slog.Logger) *Ledger {
	return &Ledger{
		entries: map[string]*domain.ViolationCount{},
		logger:  logger,
	}
}

// Record tallies every violation of one validation run. Recording happens
// independently of the verdict cache, so repeated submissions of the same
// offending content keep moving the trend counters.
func (l *Ledger) Record(violations []domain.Violation) {
	if len(violations) == 0 {
		return
	}

	now := time.Now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, v := range violations {
		e, ok := l.entries[v.Code]
		if !ok {
			e = &domain.ViolationCount{RuleCode: v.Code, Severity: v.Severity}
			l.entries[v.Code] = e
		}
		e.Count++
		e.Delta++
		e.LastSeen = now
		e.Sample = v.Message
	}
}

// Snapshot returns all counters ordered by total count descending.
func (l *Ledger) Snapshot() []domain.ViolationCount {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.ViolationCount, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].RuleCode < out[j].RuleCode
	})
	return out
}

// Top returns the n most frequent rule codes.
func (l *Ledger) Top(n int) []domain.ViolationCount {
	all := l.Snapshot()
	if n < len(all) {
		all = all[:n]
	}
	return all
}

// Flush writes counters with unflushed occurrences through the store and
// resets their deltas. On store failure the deltas are kept so the next flush
// retries them.
func (l *Ledger) Flush(ctx context.Context, store ports.DeliveryStore) error {
	if store == nil {
		return nil
	}

	l.mu.Lock()
	pending := make([]domain.ViolationCount, 0, len(l.entries))
	for _, e := range l.entries {
		if e.Delta > 0 {
			pending = append(pending, *e)
		}
	}
	l.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	if err := store.FlushViolations(ctx, pending); err != nil {
		return fmt.Errorf("flush violations: %w", err)
	}

	l.mu.Lock()
	for _, p := range pending {
		if e, ok := l.entries[p.RuleCode]; ok {
			e.Delta -= p.Delta
			if e.Delta < 0 {
				e.Delta = 0
			}
		}
	}
	l.mu.Unlock()

	return nil
}

// StartFlusher flushes on the given interval until ctx is cancelled.
func (l *Ledger) StartFlusher(ctx context.Context, store ports.DeliveryStore, interval time.Duration) {
	if store == nil || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := l.Flush(ctx, store); err != nil && l.logger != nil {
					l.logger.Warn("ledger flush failed", "error", err)
				}
			}
		}
	}()
}
