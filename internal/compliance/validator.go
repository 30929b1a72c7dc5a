package compliance

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"AdvisoryDispatch/internal/config"
	"AdvisoryDispatch/internal/domain"
	"AdvisoryDispatch/internal/infrastructure/sanitize"
	"AdvisoryDispatch/internal/ledger"
	"AdvisoryDispatch/internal/ports"
	"AdvisoryDispatch/internal/rules"
)

// Structural finding codes reported by stage one.
const (
	codeMissingEUIN         = "STRUCT-001"
	codeMissingRiskLanguage = "STRUCT-002"
	codeSemanticRejection   = "SEM-001"
	codeMissingIdentity     = "FMT-001"
	codeContentTooLong      = "FMT-002"
	codeMissingLocalized    = "FMT-003"
	codeMissingPastPerf     = "CTX-001"
	codeMissingSchemeDoc    = "CTX-002"
)

// Risk score bands keyed by how many stages passed.
var riskByStages = map[int]int{3: 10, 2: 40, 1: 70, 0: 90}

var (
	percentExpr   = regexp.MustCompile(`\d+(\.\d+)?\s*%`)
	schemeDocExpr = regexp.MustCompile(`(?i)(scheme\s+information\s+document|\bSID\b|key\s+information\s+memorandum|\bKIM\b)`)
)

// Validator runs the three-stage compliance pipeline against one content
// candidate. The rule catalog is a read-only snapshot; ReplaceCatalog swaps
// in a newer snapshot atomically, runs already in progress keep the one they
// started with.
type Validator struct {
	mu        sync.RWMutex
	catalog   *rules.Catalog
	cache     *verdictCache
	evaluator ports.SemanticEvaluator
	ledger    *ledger.Ledger
	cfg       config.ComplianceConfig
	logger    *slog.Logger
}

// NewValidator wires the pipeline. evaluator may be nil, in which case the
// semantic stage always takes the fail-open path.
func NewValidator(catalog *rules.Catalog, evaluator ports.SemanticEvaluator, led *ledger.Ledger, cfg config.ComplianceConfig, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		catalog:   catalog,
		evaluator: evaluator,
		ledger:    led,
		cache:     newVerdictCache(cfg.FingerprintPrefixLen),
		cfg:       cfg,
		logger:    logger,
	}
}

// Validate runs the full pipeline, serving repeated submissions from the
// verdict cache. Violations are tallied in the ledger on every call,
// independent of cache hits.
func (v *Validator) Validate(ctx context.Context, cand domain.ContentCandidate) domain.ComplianceVerdict {
	text := sanitize.Text(cand.Text)

	v.mu.RLock()
	cat, cache := v.catalog, v.cache
	v.mu.RUnlock()

	key := cache.fingerprint(cand.AdvisorID, text)
	if verdict, ok := cache.get(key); ok {
		v.record(verdict.Violations)
		return verdict
	}

	start := time.Now()
	verdict := v.run(ctx, cand, text, cat)
	verdict.Elapsed = time.Since(start)

	cache.set(key, verdict)
	v.record(verdict.Violations)
	return verdict
}

// ValidateInContext applies category-specific requirements before the generic
// pipeline. Failing one of them is an unconditional rejection; the three
// stages never run.
func (v *Validator) ValidateInContext(ctx context.Context, cand domain.ContentCandidate) domain.ComplianceVerdict {
	text := sanitize.Text(cand.Text)

	var finding *domain.Violation
	switch strings.ToLower(cand.ContentType) {
	case "performance":
		if percentExpr.MatchString(text) && !v.pastPerformanceDisclosed(text) {
			finding = &domain.Violation{
				Code:     codeMissingPastPerf,
				Message:  "performance content with figures requires a past-performance disclaimer",
				Severity: domain.SeverityCritical,
			}
		}
	case "scheme-specific":
		if !schemeDocExpr.MatchString(text) {
			finding = &domain.Violation{
				Code:     codeMissingSchemeDoc,
				Message:  "scheme-specific content must reference the scheme information document",
				Severity: domain.SeverityCritical,
			}
		}
	}

	if finding != nil {
		verdict := domain.ComplianceVerdict{
			Compliant:    false,
			StagesPassed: 0,
			FailedStage:  domain.StageHardRules,
			RiskScore:    riskByStages[0],
			Violations:   []domain.Violation{*finding},
			Suggestions:  suggestFor([]domain.Violation{*finding}),
		}
		v.record(verdict.Violations)
		v.logger.Info("content rejected by category rule",
			"advisor", cand.AdvisorID, "content_type", cand.ContentType, "code", finding.Code)
		return verdict
	}

	return v.Validate(ctx, cand)
}

// CatalogVersion reports which rule snapshot this validator runs against.
func (v *Validator) CatalogVersion() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.catalog.Version
}

// ReplaceCatalog installs a newer rule snapshot and drops cached verdicts,
// which were computed under the previous rules.
func (v *Validator) ReplaceCatalog(cat *rules.Catalog) {
	if cat == nil {
		return
	}
	v.mu.Lock()
	v.catalog = cat
	v.cache = newVerdictCache(v.cfg.FingerprintPrefixLen)
	v.mu.Unlock()
}

func (v *Validator) run(ctx context.Context, cand domain.ContentCandidate, text string, cat *rules.Catalog) domain.ComplianceVerdict {
	verdict := domain.ComplianceVerdict{}

	blocking, advisory, weight := v.stageHardRules(cat, cand, text)
	verdict.Violations = append(verdict.Violations, blocking...)
	verdict.Violations = append(verdict.Violations, advisory...)

	if len(blocking) == 0 {
		verdict.StagesPassed = 1

		pass, degraded, semViolations := v.stageSemantic(ctx, cand)
		verdict.Degraded = degraded
		if pass {
			verdict.StagesPassed = 2
			finals := v.stageFinal(cat, cand, text)
			verdict.Violations = append(verdict.Violations, finals...)
			if len(finals) == 0 {
				verdict.StagesPassed = 3
			}
		} else {
			verdict.Violations = append(verdict.Violations, semViolations...)
		}
	}

	verdict.Compliant = verdict.StagesPassed == 3
	if !verdict.Compliant {
		verdict.FailedStage = domain.Stage(verdict.StagesPassed + 1)
	}
	verdict.RiskScore = riskScore(verdict.StagesPassed, weight)
	verdict.Suggestions = suggestFor(verdict.Violations)
	if !verdict.Compliant && len(verdict.Suggestions) == 0 {
		verdict.Suggestions = []string{fallbackSuggestion}
	}

	v.logger.Debug("validation finished",
		"advisor", cand.AdvisorID,
		"stages_passed", verdict.StagesPassed,
		"failed_stage", verdict.FailedStage.String(),
		"risk_score", verdict.RiskScore,
		"violations", len(verdict.Violations),
		"degraded", verdict.Degraded)

	return verdict
}

// stageHardRules scans critical and high tiers plus structural invariants.
// Medium-tier matches are returned separately: they are recorded and raise
// the risk weight but do not gate the stage.
func (v *Validator) stageHardRules(cat *rules.Catalog, cand domain.ContentCandidate, text string) (blocking, advisory []domain.Violation, weight int) {
	for _, tier := range []rules.Tier{rules.TierCriticalBlock, rules.TierHighRisk} {
		for _, r := range cat.Rules(tier) {
			if r.Match(text) {
				blocking = append(blocking, r.Violation())
			}
		}
	}

	for _, r := range cat.Rules(rules.TierMediumRisk) {
		if r.Match(text) {
			advisory = append(advisory, r.Violation())
			weight += r.Weight
		}
	}

	if cand.EUIN == "" || !strings.Contains(text, cand.EUIN) {
		blocking = append(blocking, domain.Violation{
			Code:     codeMissingEUIN,
			Message:  "advisor registration code (EUIN) must appear in the content",
			Severity: domain.SeverityHigh,
		})
	}

	if !cat.HasRiskLanguage(text) {
		blocking = append(blocking, domain.Violation{
			Code:     codeMissingRiskLanguage,
			Message:  "content carries no risk-related language",
			Severity: domain.SeverityHigh,
		})
	}

	for _, d := range cat.Disclaimers {
		if d.Triggered(text) && !d.Satisfied(text) {
			blocking = append(blocking, domain.Violation{
				Code:     d.Code,
				Message:  "required disclaimer missing: " + d.Disclaimer,
				Severity: domain.SeverityHigh,
			})
		}
	}

	return blocking, advisory, weight
}

// stageSemantic delegates to the external evaluator. Infrastructure failures
// fail open with the configured degraded score; that pass is logged
// distinctly and flagged on the verdict so it is never mistaken for a clean
// one.
func (v *Validator) stageSemantic(ctx context.Context, cand domain.ContentCandidate) (pass, degraded bool, violations []domain.Violation) {
	timeout := time.Duration(v.cfg.SemanticTimeoutSeconds) * time.Second
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if v.evaluator == nil {
		v.logger.Warn("semantic evaluation degraded: no evaluator configured",
			"advisor", cand.AdvisorID, "default_score", v.cfg.DegradedPassScore)
		return true, true, nil
	}

	res, err := v.evaluator.Evaluate(evalCtx, cand)
	if err != nil || res.Score < 0 || res.Score > 1 {
		v.logger.Warn("semantic evaluation degraded: failing open",
			"advisor", cand.AdvisorID, "error", err, "default_score", v.cfg.DegradedPassScore)
		return true, true, nil
	}

	if res.Compliant && res.Score > v.cfg.SemanticPassScore {
		return true, false, nil
	}

	msg := "semantic evaluation rejected the content"
	if len(res.Issues) > 0 {
		msg += ": " + strings.Join(res.Issues, "; ")
	}
	return false, false, []domain.Violation{{
		Code:     codeSemanticRejection,
		Message:  msg,
		Severity: domain.SeverityHigh,
	}}
}

// stageFinal enforces channel-facing format constraints.
func (v *Validator) stageFinal(cat *rules.Catalog, cand domain.ContentCandidate, text string) []domain.Violation {
	var out []domain.Violation

	if !v.identityPresent(cand, text) {
		out = append(out, domain.Violation{
			Code:     codeMissingIdentity,
			Message:  "advisor identity must be present in the content",
			Severity: domain.SeverityMedium,
		})
	}

	if len([]rune(text)) > v.cfg.MaxContentLength {
		out = append(out, domain.Violation{
			Code:     codeContentTooLong,
			Message:  "content exceeds the channel length limit",
			Severity: domain.SeverityMedium,
		})
	}

	if phrase, ok := cat.LocalizedDisclaimers[strings.ToLower(cand.Language)]; ok {
		if !strings.Contains(text, phrase) {
			out = append(out, domain.Violation{
				Code:     codeMissingLocalized,
				Message:  "localized disclaimer phrasing missing for language " + cand.Language,
				Severity: domain.SeverityMedium,
			})
		}
	}

	return out
}

func (v *Validator) identityPresent(cand domain.ContentCandidate, text string) bool {
	if cand.EUIN != "" && strings.Contains(text, cand.EUIN) {
		return true
	}
	return cand.AdvisorID != "" && strings.Contains(text, cand.AdvisorID)
}

func (v *Validator) pastPerformanceDisclosed(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, strings.ToLower(rules.PastPerformanceDisclaimer)) ||
		strings.Contains(lower, "past performance is not indicative")
}

func (v *Validator) record(violations []domain.Violation) {
	if v.ledger != nil {
		v.ledger.Record(violations)
	}
}

// riskScore maps the stage count to its band. Medium-tier weights raise the
// score only inside the middle bands; the worst band stays a fixed 90 so a
// critical match always scores identically, and a fully compliant verdict
// stays at 10.
func riskScore(stagesPassed, weight int) int {
	score := riskByStages[stagesPassed]
	if stagesPassed == 1 || stagesPassed == 2 {
		score += weight
	}
	if score > 100 {
		score = 100
	}
	return score
}
