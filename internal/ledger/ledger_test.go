package ledger

import (
	"context"
	"errors"
	"testing"

	"AdvisoryDispatch/internal/domain"
)

type fakeStore struct {
	flushed [][]domain.ViolationCount
	err     error
}

func (f *fakeStore) SaveResult(ctx context.Context, res domain.DeliveryResult) error { return nil }

func (f *fakeStore) LastResult(ctx context.Context, jobID string) (domain.DeliveryResult, error) {
	return domain.DeliveryResult{}, nil
}

func (f *fakeStore) FlushViolations(ctx context.Context, counts []domain.ViolationCount) error {
	if f.err != nil {
		return f.err
	}
	f.flushed = append(f.flushed, counts)
	return nil
}

func (f *fakeStore) AppendCatalogUpdate(ctx context.Context, upd domain.CatalogUpdate) error {
	return nil
}

func violation(code string) domain.Violation {
	return domain.Violation{Code: code, Message: "msg " + code, Severity: domain.SeverityHigh}
}

func TestRecordAccumulatesCounts(t *testing.T) {
	t.Parallel()

	l := New(nil)
	l.Record([]domain.Violation{violation("SEBI-001"), violation("DISC-001")})
	l.Record([]domain.Violation{violation("SEBI-001")})

	snap := l.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 counters, got %d", len(snap))
	}
	if snap[0].RuleCode != "SEBI-001" || snap[0].Count != 2 {
		t.Fatalf("expected SEBI-001 first with count 2, got %+v", snap[0])
	}
	if snap[1].RuleCode != "DISC-001" || snap[1].Count != 1 {
		t.Fatalf("expected DISC-001 second with count 1, got %+v", snap[1])
	}
	if snap[0].LastSeen.IsZero() || snap[0].Sample == "" {
		t.Fatalf("counter must carry last-seen and sample: %+v", snap[0])
	}
}

func TestSnapshotOrdersTiesByCode(t *testing.T) {
	t.Parallel()

	l := New(nil)
	l.Record([]domain.Violation{violation("SEBI-010"), violation("DISC-001")})

	snap := l.Snapshot()
	if snap[0].RuleCode != "DISC-001" || snap[1].RuleCode != "SEBI-010" {
		t.Fatalf("equal counts must order by code, got %s then %s", snap[0].RuleCode, snap[1].RuleCode)
	}
}

func TestTopLimitsEntries(t *testing.T) {
	t.Parallel()

	l := New(nil)
	l.Record([]domain.Violation{violation("A"), violation("B"), violation("C")})
	l.Record([]domain.Violation{violation("A")})

	top := l.Top(1)
	if len(top) != 1 || top[0].RuleCode != "A" {
		t.Fatalf("expected single top entry A, got %+v", top)
	}
}

func TestFlushResetsDeltasKeepsTotals(t *testing.T) {
	t.Parallel()

	l := New(nil)
	store := &fakeStore{}

	l.Record([]domain.Violation{violation("SEBI-001")})
	if err := l.Flush(context.Background(), store); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(store.flushed) != 1 {
		t.Fatalf("expected one flush batch, got %d", len(store.flushed))
	}

	snap := l.Snapshot()
	if snap[0].Count != 1 || snap[0].Delta != 0 {
		t.Fatalf("flush must keep totals and zero deltas, got %+v", snap[0])
	}

	// Nothing new since the last flush, so the store stays untouched.
	if err := l.Flush(context.Background(), store); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(store.flushed) != 1 {
		t.Fatalf("flush without deltas must not hit the store")
	}
}

func TestFlushFailureRetainsDeltas(t *testing.T) {
	t.Parallel()

	l := New(nil)
	failing := &fakeStore{err: errors.New("connection reset")}

	l.Record([]domain.Violation{violation("SEBI-001")})
	if err := l.Flush(context.Background(), failing); err == nil {
		t.Fatalf("expected flush error")
	}

	working := &fakeStore{}
	if err := l.Flush(context.Background(), working); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if len(working.flushed) != 1 || working.flushed[0][0].Delta != 1 {
		t.Fatalf("deltas must survive a failed flush, got %+v", working.flushed)
	}
}

func TestFlushNilStoreIsNoop(t *testing.T) {
	t.Parallel()

	l := New(nil)
	l.Record([]domain.Violation{violation("SEBI-001")})
	if err := l.Flush(context.Background(), nil); err != nil {
		t.Fatalf("nil store flush: %v", err)
	}
}
