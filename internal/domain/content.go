package domain

import "time"

// ContentCandidate is the unit submitted for compliance validation.
// Immutable once submitted for a given check.
type ContentCandidate struct {
	AdvisorID   string
	EUIN        string // regulator-issued registration code, may be empty
	Text        string
	ContentType string // "performance", "scheme-specific", or "" for generic
	Language    string // e.g. "en", "hi"
}

// Severity ranks how serious a rule violation is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Violation is a single finding against a content candidate.
type Violation struct {
	Code     string
	Message  string
	Severity Severity
}

// Stage identifies one of the ordered compliance checks.
type Stage int

const (
	StageHardRules Stage = iota + 1
	StageSemantic
	StageFinal
)

func (s Stage) String() string {
	switch s {
	case StageHardRules:
		return "hard-rules"
	case StageSemantic:
		return "semantic"
	case StageFinal:
		return "final"
	default:
		return "none"
	}
}

// ComplianceVerdict is the output of one full validation run. Verdicts are
// immutable and cacheable by fingerprint.
type ComplianceVerdict struct {
	Compliant    bool
	StagesPassed int   // 0..3
	FailedStage  Stage // stage that rejected the content, zero when compliant
	RiskScore    int   // 0..100
	Violations   []Violation
	Suggestions  []string
	Degraded     bool // semantic stage passed via fail-open default
	Elapsed      time.Duration
}

// SemanticResult is what the external semantic evaluator returns.
type SemanticResult struct {
	Compliant bool
	Score     float64 // 0..1
	Issues    []string
}

// ViolationCount is one ledger row: how often a rule fired.
type ViolationCount struct {
	RuleCode string
	Severity Severity
	Count    int64
	Delta    int64 // occurrences since the last flush
	LastSeen time.Time
	Sample   string
}

// CatalogUpdate records one append-only rule catalog change.
type CatalogUpdate struct {
	Version     int
	RuleCode    string
	Kind        string // "rule" or "disclaimer"
	Description string
	CreatedAt   time.Time
	Applied     bool
}
