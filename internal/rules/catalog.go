package rules

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"AdvisoryDispatch/internal/domain"
)

// Tier groups prohibited-phrase rules by how they gate validation.
type Tier string

const (
	TierCriticalBlock Tier = "critical-block"
	TierHighRisk      Tier = "high-risk"
	TierMediumRisk    Tier = "medium-risk"
)

// Rule is one named prohibited-phrase rule. Patterns are compiled lazily and
// the compiled form is shared safely across goroutines.
type Rule struct {
	Code     string
	Message  string
	Severity domain.Severity
	Weight   int // added to the risk score when matched, 0 for none
	Patterns []string

	once     sync.Once
	compiled []*regexp.Regexp
}

// Match reports whether any of the rule's patterns occur in text. Matching is
// case-insensitive.
func (r *Rule) Match(text string) bool {
	r.once.Do(func() {
		r.compiled = make([]*regexp.Regexp, 0, len(r.Patterns))
		for _, p := range r.Patterns {
			r.compiled = append(r.compiled, regexp.MustCompile("(?i)"+p))
		}
	})

	for _, re := range r.compiled {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Violation builds the finding reported when the rule matches.
func (r *Rule) Violation() domain.Violation {
	return domain.Violation{Code: r.Code, Message: r.Message, Severity: r.Severity}
}

// DisclaimerRule maps topic trigger terms to a mandatory disclaimer.
type DisclaimerRule struct {
	Code       string
	Triggers   []string // topic terms that make the disclaimer mandatory
	Disclaimer string   // full mandatory text
	ShortForm  string   // accepted abbreviated form
}

// Triggered reports whether the content touches the rule's topic.
func (d DisclaimerRule) Triggered(text string) bool {
	lower := strings.ToLower(text)
	for _, t := range d.Triggers {
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// Satisfied reports whether the mandatory disclaimer (or its short form) is
// present.
func (d DisclaimerRule) Satisfied(text string) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, strings.ToLower(d.Disclaimer)) {
		return true
	}
	return d.ShortForm != "" && strings.Contains(lower, strings.ToLower(d.ShortForm))
}

// Catalog is a versioned, read-only snapshot of the rule table. Validators
// receive a snapshot by injection; it never mutates mid-check. Updates go
// through Append, which produces a new snapshot.
type Catalog struct {
	Version   int
	CreatedAt time.Time

	critical []*Rule
	high     []*Rule
	medium   []*Rule

	Disclaimers []DisclaimerRule

	// LocalizedDisclaimers maps a language tag to disclaimer phrasing that
	// must appear verbatim when content carries that tag.
	LocalizedDisclaimers map[string]string
}

// Rules returns the rules of one tier. The returned slice must not be
// modified.
func (c *Catalog) Rules(tier Tier) []*Rule {
	switch tier {
	case TierCriticalBlock:
		return c.critical
	case TierHighRisk:
		return c.high
	case TierMediumRisk:
		return c.medium
	default:
		return nil
	}
}

// HasRiskLanguage reports whether the content contains any disclaimer trigger
// term. Compliant advisory content must mention risk somewhere.
func (c *Catalog) HasRiskLanguage(text string) bool {
	for _, d := range c.Disclaimers {
		if d.Triggered(text) || d.Satisfied(text) {
			return true
		}
	}
	return false
}

// Update describes one append-only catalog change. Exactly one of Rule or
// Disclaimer is set.
type Update struct {
	Tier       Tier
	Rule       *Rule
	Disclaimer *DisclaimerRule
}

// Append returns a new snapshot with the update applied and the version
// bumped. The receiver is left untouched, so in-progress validations keep the
// snapshot they started with.
func (c *Catalog) Append(u Update) (*Catalog, domain.CatalogUpdate, error) {
	next := &Catalog{
		Version:              c.Version + 1,
		CreatedAt:            time.Now().UTC(),
		critical:             c.critical,
		high:                 c.high,
		medium:               c.medium,
		Disclaimers:          c.Disclaimers,
		LocalizedDisclaimers: c.LocalizedDisclaimers,
	}

	record := domain.CatalogUpdate{
		Version:   next.Version,
		CreatedAt: next.CreatedAt,
		Applied:   true,
	}

	switch {
	case u.Rule != nil:
		record.Kind = "rule"
		record.RuleCode = u.Rule.Code
		record.Description = u.Rule.Message
		switch u.Tier {
		case TierCriticalBlock:
			next.critical = appendRule(c.critical, u.Rule)
		case TierHighRisk:
			next.high = appendRule(c.high, u.Rule)
		case TierMediumRisk:
			next.medium = appendRule(c.medium, u.Rule)
		default:
			return nil, domain.CatalogUpdate{}, fmt.Errorf("unknown tier %q", u.Tier)
		}
	case u.Disclaimer != nil:
		record.Kind = "disclaimer"
		record.RuleCode = u.Disclaimer.Code
		record.Description = u.Disclaimer.Disclaimer
		next.Disclaimers = append(append([]DisclaimerRule(nil), c.Disclaimers...), *u.Disclaimer)
	default:
		return nil, domain.CatalogUpdate{}, fmt.Errorf("update carries neither rule nor disclaimer")
	}

	return next, record, nil
}

func appendRule(existing []*Rule, r *Rule) []*Rule {
	return append(append([]*Rule(nil), existing...), r)
}
