package rules

import (
	"time"

	"AdvisoryDispatch/internal/domain"
)

// MarketRiskDisclaimer is the full SEBI-mandated market risk statement.
const MarketRiskDisclaimer = "Mutual fund investments are subject to market risks, read all scheme related documents carefully"

// MarketRiskShortForm is the accepted abbreviated form of the statement.
const MarketRiskShortForm = "subject to market risks"

// PastPerformanceDisclaimer must accompany any performance figures.
const PastPerformanceDisclaimer = "Past performance is not indicative of future returns"

// DefaultCatalog builds the built-in SEBI advertising rule snapshot,
// version 1.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Version:   1,
		CreatedAt: time.Now().UTC(),
		critical: []*Rule{
			{
				Code:     "SEBI-001",
				Message:  "guaranteed or assured return claims are prohibited",
				Severity: domain.SeverityCritical,
				Weight:   10,
				Patterns: []string{
					`guaranteed\s+returns?`,
					`assured\s+returns?`,
					`returns?\s+(are\s+)?guaranteed`,
					`guarantee[ds]?\s+\d+(\.\d+)?\s*%`,
				},
			},
			{
				Code:     "SEBI-002",
				Message:  "risk-free investment claims are prohibited",
				Severity: domain.SeverityCritical,
				Weight:   10,
				Patterns: []string{
					`risk[\s-]*free\s+(investment|returns?|profits?)`,
					`zero\s+risk`,
					`no\s+risk\s+(at\s+all|involved|whatsoever)`,
				},
			},
			{
				Code:     "SEBI-003",
				Message:  "promising fixed or indicative returns is prohibited",
				Severity: domain.SeverityCritical,
				Weight:   10,
				Patterns: []string{
					`(fixed|certain|definite)\s+returns?\s+of\s+\d+`,
					`you\s+will\s+(get|earn|make)\s+\d+(\.\d+)?\s*%`,
					`indicative\s+returns?\s+of`,
					`double\s+your\s+(money|investment)`,
				},
			},
		},
		high: []*Rule{
			{
				Code:     "SEBI-010",
				Message:  "pressure tactics and urgency framing are not allowed",
				Severity: domain.SeverityHigh,
				Weight:   5,
				Patterns: []string{
					`(act|invest|buy)\s+now\s+or`,
					`last\s+chance\s+to\s+invest`,
					`limited\s+time\s+offer`,
					`(hurry|don'?t\s+miss)`,
				},
			},
			{
				Code:     "SEBI-011",
				Message:  "superlative or unverifiable claims require substantiation",
				Severity: domain.SeverityHigh,
				Weight:   5,
				Patterns: []string{
					`best\s+(fund|scheme|plan|investment)\s+in`,
					`(no\.?|number)\s*1\s+(fund|scheme|advisor)`,
					`(highest|top)\s+returns?\s+in\s+the\s+(market|industry)`,
				},
			},
			{
				Code:     "SEBI-012",
				Message:  "implying future returns from past performance is not allowed",
				Severity: domain.SeverityHigh,
				Weight:   5,
				Patterns: []string{
					`(has|have)\s+always\s+(given|delivered|returned)`,
					`historically\s+(always\s+)?(gives|delivers|beats)`,
					`will\s+(definitely\s+)?repeat\s+(its|this|the)\s+performance`,
				},
			},
		},
		medium: []*Rule{
			{
				Code:     "SEBI-020",
				Message:  "comparative claims against competitors need disclosure",
				Severity: domain.SeverityMedium,
				Weight:   2,
				Patterns: []string{
					`(better|higher)\s+than\s+(any|every|all)\s+(other|competing)`,
					`beats\s+(every|all)\s+(other\s+)?(funds?|schemes?)`,
				},
			},
			{
				Code:     "SEBI-021",
				Message:  "informal promises dilute the advisory tone",
				Severity: domain.SeverityMedium,
				Weight:   2,
				Patterns: []string{
					`trust\s+me`,
					`i\s+promise`,
					`(can'?t|cannot)\s+lose`,
				},
			},
		},
		Disclaimers: []DisclaimerRule{
			{
				Code: "DISC-001",
				Triggers: []string{
					"mutual fund", "sip", "equity", "debt fund", "elss",
					"investment", "returns", "nav", "portfolio",
				},
				Disclaimer: MarketRiskDisclaimer,
				ShortForm:  MarketRiskShortForm,
			},
			{
				Code: "DISC-002",
				Triggers: []string{
					"cagr", "annualised", "annualized", "historical returns",
					"past returns", "track record",
				},
				Disclaimer: PastPerformanceDisclaimer,
				ShortForm:  "past performance is not indicative",
			},
		},
		LocalizedDisclaimers: map[string]string{
			"hi": "म्यूचुअल फंड निवेश बाजार जोखिमों के अधीन हैं",
			"gu": "મ્યુચ્યુઅલ ફંડ રોકાણ બજારના જોખમોને આધીન છે",
		},
	}
}
