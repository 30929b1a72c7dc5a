package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"AdvisoryDispatch/internal/config"
	"AdvisoryDispatch/internal/domain"
	"AdvisoryDispatch/internal/ports"
)

const rubricPrompt = `You are a SEBI advertising-code compliance reviewer for
financial advisory content sent to retail clients. Evaluate the content
against this rubric:
1. Misleading claims: no promised, implied, or cherry-picked returns.
2. Disclosure adequacy: risks and costs disclosed alongside benefits.
3. Educational framing: informative tone, no solicitation pressure.
4. Balance: upside claims matched by downside discussion.
5. Identity disclosure: the advisor is identifiable.

Respond with JSON only, no prose:
{"compliant": true|false, "score": 0.0-1.0, "issues": ["..."]}`

// Evaluator implements ports.SemanticEvaluator over the OpenAI chat
// completion API.
type Evaluator struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

var _ ports.SemanticEvaluator = (*Evaluator)(nil)

// NewEvaluator builds a client from configuration.
func NewEvaluator(cfg config.SemanticConfig, logger *slog.Logger) (*Evaluator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("semantic evaluator requires an API key")
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Evaluator{
		client: openai.NewClient(cfg.APIKey),
		model:  model,
		logger: logger,
	}, nil
}

// Evaluate submits the candidate with the rubric and parses the structured
// reply. Errors here mean infrastructure failure; the validator decides what
// to do with them.
func (e *Evaluator) Evaluate(ctx context.Context, cand domain.ContentCandidate) (domain.SemanticResult, error) {
	user := fmt.Sprintf("Advisor: %s\nContent type: %s\nLanguage: %s\n\nContent:\n%s",
		cand.AdvisorID, cand.ContentType, cand.Language, cand.Text)

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rubricPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return domain.SemanticResult{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.SemanticResult{}, fmt.Errorf("no choices in completion response")
	}

	return parseReply(resp.Choices[0].Message.Content)
}

func parseReply(raw string) (domain.SemanticResult, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var parsed struct {
		Compliant bool     `json:"compliant"`
		Score     float64  `json:"score"`
		Issues    []string `json:"issues"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return domain.SemanticResult{}, fmt.Errorf("parse evaluator reply: %w", err)
	}
	if parsed.Score < 0 || parsed.Score > 1 {
		return domain.SemanticResult{}, fmt.Errorf("evaluator score %v out of range", parsed.Score)
	}

	return domain.SemanticResult{
		Compliant: parsed.Compliant,
		Score:     parsed.Score,
		Issues:    parsed.Issues,
	}, nil
}
