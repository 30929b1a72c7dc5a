package ports

import (
	"context"
	"time"

	"AdvisoryDispatch/internal/domain"
)

// ContentSource pulls the day's approved batch from the upstream approval
// workflow.
type ContentSource interface {
	FetchDaily(ctx context.Context, day time.Time) ([]domain.DispatchRequest, error)
}

// SemanticEvaluator delegates the second compliance stage to an external
// model. Implementations must respect ctx deadlines; callers treat any error
// as an infrastructure failure, never as a rejection.
type SemanticEvaluator interface {
	Evaluate(ctx context.Context, candidate domain.ContentCandidate) (domain.SemanticResult, error)
}

// Channel is the messaging provider contract. Retries and rate limiting live
// entirely on the core side, not inside implementations.
type Channel interface {
	Name() string
	SendTemplate(ctx context.Context, destination, templateID, language string, params []string) (string, error)
	SendText(ctx context.Context, destination, text string) (string, error)
	SendImage(ctx context.Context, destination, imageURL, caption string) (string, error)
}

// Dispatcher resolves a job to a channel and performs the send, returning the
// channel-assigned message id.
type Dispatcher interface {
	Dispatch(ctx context.Context, job domain.DeliveryJob) (string, error)
}

// DeliveryStore persists dispatch outcomes, ledger flushes, and catalog
// updates. The core defines what is stored, not how.
type DeliveryStore interface {
	SaveResult(ctx context.Context, result domain.DeliveryResult) error
	LastResult(ctx context.Context, jobID string) (domain.DeliveryResult, error)
	FlushViolations(ctx context.Context, counts []domain.ViolationCount) error
	AppendCatalogUpdate(ctx context.Context, update domain.CatalogUpdate) error
}

// AlertNotifier surfaces conditions an operator must see: terminally failed
// deliveries and degraded-mode compliance passes.
type AlertNotifier interface {
	Alert(ctx context.Context, message string) error
}

// Scheduler controls when the daily pipeline executes.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
