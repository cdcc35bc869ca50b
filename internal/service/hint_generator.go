package service

import (
	"context"
	"fmt"
	"sia_backend/internal/model"
	"strings"
)

type HintRequest struct {
	ActivityType  model.ActivityType
	Prompt        string
	Expected      string
	Response      string
	Language      string
	PreviousHints []model.Hint
}

// HintGenerator produces one extra hint for a patient who answered wrongly.
type HintGenerator interface {
	GenerateHint(ctx context.Context, req HintRequest) (*model.Hint, error)
}

const hintSystemPrompt = `You are a speech therapist helping a patient with aphasia find a word.
Give one short, simple hint that helps the patient say the expected answer without saying the answer itself.
Do not repeat hints the patient has already seen.`

var hintSchema = &AISchema{
	Name: "answer_hint",
	Definition: map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"text"},
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
	},
}

type LLMHintGenerator struct {
	AI *AIService
}

func NewLLMHintGenerator(ai *AIService) *LLMHintGenerator {
	return &LLMHintGenerator{AI: ai}
}

func (g *LLMHintGenerator) GenerateHint(ctx context.Context, req HintRequest) (*model.Hint, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\nExpected answer: %s\nPatient response: %s\n", req.Prompt, req.Expected, req.Response)
	if req.Language != "" {
		fmt.Fprintf(&b, "Answer in %s.\n", req.Language)
	}
	for _, h := range req.PreviousHints {
		fmt.Fprintf(&b, "Already given: %s\n", h.Text)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := g.AI.ChatJSON(ctx, hintSystemPrompt, b.String(), hintSchema, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, fmt.Errorf("%w: empty hint", ErrInvalidAIResponse)
	}
	return &model.Hint{
		ActivityType: req.ActivityType,
		Kind:         model.HintGenerated,
		Text:         out.Text,
	}, nil
}
