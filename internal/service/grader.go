package service

import (
	"context"
	"fmt"
	"sia_backend/internal/model"
	"strings"
	"unicode"
)

type GradeRequest struct {
	ActivityType model.ActivityType
	Prompt       string
	Expected     string
	Response     string
}

type GradeResult struct {
	IsCorrect      bool
	IsIntelligible *bool
}

// Grader decides whether a patient response answers the question.
type Grader interface {
	Grade(ctx context.Context, req GradeRequest) (*GradeResult, error)
}

// ExactMatchGrader compares the normalised response with the expected answer.
// Case, punctuation and repeated whitespace are ignored.
type ExactMatchGrader struct{}

func (ExactMatchGrader) Grade(ctx context.Context, req GradeRequest) (*GradeResult, error) {
	got := normalizeAnswer(req.Response)
	want := normalizeAnswer(req.Expected)
	return &GradeResult{IsCorrect: got != "" && got == want}, nil
}

func normalizeAnswer(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

const graderSystemPrompt = `You are a speech therapy assistant helping patients with aphasia.
You will be given a question posed to the patient, the expected answer, and the patient's response.
Evaluate whether the patient has understood and spoken the object correctly.
If the response is not the expected answer but still valid in context, treat it as correct.
Mark the response intelligible if a listener could make out the words, even when they are wrong.
Choose the next step: "descriptive_hint" if the patient does not recognise the object,
"phonetic_hint" if the patient recognises it but struggles to say the word, "next_question" if the answer is correct.`

var gradeSchema = &AISchema{
	Name: "answer_grade",
	Definition: map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"evaluation", "is_correct", "is_intelligible", "next_step"},
		"properties": map[string]any{
			"evaluation":      map[string]any{"type": "string"},
			"is_correct":      map[string]any{"type": "boolean"},
			"is_intelligible": map[string]any{"type": "boolean"},
			"next_step": map[string]any{
				"type": "string",
				"enum": []string{"descriptive_hint", "phonetic_hint", "next_question"},
			},
		},
	},
}

type llmGrade struct {
	Evaluation     string `json:"evaluation"`
	IsCorrect      bool   `json:"is_correct"`
	IsIntelligible bool   `json:"is_intelligible"`
	NextStep       string `json:"next_step"`
}

// LLMGrader lets the model judge the response, accepting contextually valid
// alternatives to the expected answer.
type LLMGrader struct {
	AI *AIService
}

func NewLLMGrader(ai *AIService) *LLMGrader {
	return &LLMGrader{AI: ai}
}

func (g *LLMGrader) Grade(ctx context.Context, req GradeRequest) (*GradeResult, error) {
	if strings.TrimSpace(req.Response) == "" {
		return &GradeResult{IsCorrect: false}, nil
	}

	prompt := fmt.Sprintf("Question: %s\nExpected answer: %s\nPatient response: %s",
		req.Prompt, req.Expected, req.Response)

	var grade llmGrade
	if err := g.AI.ChatJSON(ctx, graderSystemPrompt, prompt, gradeSchema, &grade); err != nil {
		return nil, err
	}
	intelligible := grade.IsIntelligible
	return &GradeResult{IsCorrect: grade.IsCorrect, IsIntelligible: &intelligible}, nil
}
