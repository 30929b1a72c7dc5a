package domain

import (
	"strings"
	"time"
)

// Priority orders delivery jobs across advisor tiers. Higher values dispatch
// first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// PriorityForTier maps an advisor service tier to a job priority. The mapping
// happens at job-creation time so priority stays stable for the life of the
// job.
func PriorityForTier(tier string) Priority {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "premium", "platinum":
		return PriorityHigh
	case "standard", "gold":
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// JobStatus tracks a delivery job through its lifecycle.
type JobStatus string

const (
	JobPending      JobStatus = "pending"
	JobInFlight     JobStatus = "in-flight"
	JobRetryPending JobStatus = "retry-pending"
	JobSucceeded    JobStatus = "success"
	JobFailed       JobStatus = "failed"
	JobCancelled    JobStatus = "cancelled"
)

// DeliveryJob is one scheduled send. Created only from content holding a
// compliant verdict; mutated by the scheduler until it reaches a terminal
// state.
type DeliveryJob struct {
	ID          string
	AdvisorID   string
	ContentID   string
	Destination string
	Channel     string // registry name of the channel to send through

	// Exactly one payload form is used. A non-empty TemplateID selects a
	// template send, a non-empty ImageURL an image send, otherwise Text.
	Text           string
	TemplateID     string
	TemplateParams []string
	ImageURL       string
	Language       string

	TargetTime time.Time
	Priority   Priority
	RetryCount int
	MaxRetries int
	Status     JobStatus
	CreatedAt  time.Time
}

// ResultStatus classifies one dispatch attempt.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultRetry   ResultStatus = "retry"
	ResultFailed  ResultStatus = "failed"
)

// DeliveryResult is the outcome of one dispatch attempt. A job accumulates a
// sequence of results across retries; the last one is authoritative.
type DeliveryResult struct {
	JobID     string
	Status    ResultStatus
	MessageID string // channel-assigned id, set on success
	Error     string
	Attempt   int
	Timestamp time.Time
}

// DispatchRequest is one entry of the daily approval batch handed to the
// pipeline: a candidate plus everything needed to build its job once the
// verdict comes back compliant.
type DispatchRequest struct {
	Candidate   ContentCandidate
	ContentID   string
	Destination string
	Channel     string
	ServiceTier string
	SendAt      time.Time // start of the desired send window
}
