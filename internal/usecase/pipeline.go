package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"AdvisoryDispatch/internal/compliance"
	"AdvisoryDispatch/internal/delivery"
	"AdvisoryDispatch/internal/domain"
	"AdvisoryDispatch/internal/ports"
)

// PipelineDeps wires all collaborators into the daily dispatch workflow.
type PipelineDeps struct {
	Source     ports.ContentSource
	Validator  *compliance.Validator
	Scheduler  *delivery.Scheduler
	MaxRetries int
	Logger     *slog.Logger
}

// Pipeline turns the day's approved batch into delivery jobs. Only content
// holding a compliant verdict ever becomes a job.
type Pipeline struct {
	source     ports.ContentSource
	validator  *compliance.Validator
	scheduler  *delivery.Scheduler
	maxRetries int
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:     deps.Source,
		validator:  deps.Validator,
		scheduler:  deps.Scheduler,
		maxRetries: deps.MaxRetries,
		logger:     logger,
	}
}

// ProcessDay validates the daily batch and enqueues the compliant part with
// jitter. Rejected candidates are logged with their findings and never reach
// the queue.
func (p *Pipeline) ProcessDay(ctx context.Context, day time.Time) error {
	if p.source == nil {
		return nil
	}

	requests, err := p.source.FetchDaily(ctx, day)
	if err != nil {
		return fmt.Errorf("fetch daily batch: %w", err)
	}

	var (
		jobs     []*domain.DeliveryJob
		rejected int
	)
	for _, req := range requests {
		verdict := p.validator.ValidateInContext(ctx, req.Candidate)
		if !verdict.Compliant {
			rejected++
			p.logger.Info("content rejected",
				"advisor", req.Candidate.AdvisorID,
				"content", req.ContentID,
				"stages_passed", verdict.StagesPassed,
				"risk_score", verdict.RiskScore,
				"suggestions", verdict.Suggestions)
			continue
		}
		jobs = append(jobs, p.buildJob(req))
	}

	if len(jobs) > 0 {
		p.scheduler.EnqueueBatch(jobs)
	}

	p.logger.Info("daily batch processed",
		"day", day.Format("2006-01-02"),
		"candidates", len(requests),
		"queued", len(jobs),
		"rejected", rejected)
	return nil
}

// SendNow validates one candidate and, if compliant, dispatches it outside
// the daily batch without jitter. The returned job id can be used with the
// scheduler's result query.
func (p *Pipeline) SendNow(ctx context.Context, req domain.DispatchRequest) (string, error) {
	verdict := p.validator.ValidateInContext(ctx, req.Candidate)
	if !verdict.Compliant {
		return "", fmt.Errorf("content not compliant (risk score %d): %v",
			verdict.RiskScore, verdict.Suggestions)
	}

	job := p.buildJob(req)
	p.scheduler.EnqueueImmediate(job)
	return job.ID, nil
}

// buildJob maps the request to a job. Priority is fixed here, at creation
// time, from the advisor's service tier.
func (p *Pipeline) buildJob(req domain.DispatchRequest) *domain.DeliveryJob {
	target := req.SendAt
	if target.IsZero() {
		target = time.Now()
	}
	return &domain.DeliveryJob{
		ID:          uuid.NewString(),
		AdvisorID:   req.Candidate.AdvisorID,
		ContentID:   req.ContentID,
		Destination: req.Destination,
		Channel:     req.Channel,
		Text:        req.Candidate.Text,
		Language:    req.Candidate.Language,
		TargetTime:  target,
		Priority:    domain.PriorityForTier(req.ServiceTier),
		MaxRetries:  p.maxRetries,
		Status:      domain.JobPending,
		CreatedAt:   time.Now(),
	}
}
