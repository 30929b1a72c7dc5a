package semantic

import (
	"testing"

	"AdvisoryDispatch/internal/config"
)

func TestParseReply(t *testing.T) {
	t.Parallel()

	res, err := parseReply(`{"compliant": true, "score": 0.92, "issues": []}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !res.Compliant || res.Score != 0.92 || len(res.Issues) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestParseReplyStripsCodeFences(t *testing.T) {
	t.Parallel()

	raw := "```json\n{\"compliant\": false, \"score\": 0.3, \"issues\": [\"one-sided claims\"]}\n```"
	res, err := parseReply(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Compliant || res.Score != 0.3 || len(res.Issues) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestParseReplyRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := parseReply("the content looks fine to me"); err == nil {
		t.Fatalf("prose reply must error")
	}
	if _, err := parseReply(`{"compliant": true, "score": 7}`); err == nil {
		t.Fatalf("out-of-range score must error")
	}
}

func TestNewEvaluatorRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewEvaluator(config.SemanticConfig{}, nil); err == nil {
		t.Fatalf("expected error without API key")
	}
	if _, err := NewEvaluator(config.SemanticConfig{APIKey: "sk-test"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
