package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sia_backend/internal/model"
	"strings"

	"gopkg.in/yaml.v3"
)

// ContentRequest is what a generator needs to build one activity.
type ContentRequest struct {
	Profile   *model.PatientProfile
	ItemCount int
}

// ContentGenerator produces the title and item definitions of a new activity.
type ContentGenerator interface {
	Generate(ctx context.Context, req ContentRequest) (*model.GeneratedActivity, error)
}

// ---------------------------------------------------------------------------
// 静态题库

type exerciseBank struct {
	DefaultLanguage string                 `yaml:"default_language"`
	Languages       map[string]exerciseSet `yaml:"languages"`
}

type exerciseSet struct {
	Title string          `yaml:"title"`
	Items []exerciseEntry `yaml:"items"`
}

type exerciseEntry struct {
	Prompt         string         `yaml:"prompt"`
	ExpectedAnswer string         `yaml:"expected_answer"`
	MaxRetries     *int           `yaml:"max_retries"`
	Hints          []exerciseHint `yaml:"hints"`
}

type exerciseHint struct {
	Kind string `yaml:"kind"`
	Text string `yaml:"text"`
}

const builtinExerciseBank = `
default_language: english
languages:
  english:
    title: Daily routine naming
    items:
      - prompt: What do you use to brush your teeth?
        expected_answer: toothbrush
        hints:
          - kind: descriptive
            text: It has a long handle and small bristles. You use it with toothpaste.
          - kind: phonetic
            text: It starts with "tooth".
      - prompt: What do you wear on your feet before going outside?
        expected_answer: shoes
        hints:
          - kind: descriptive
            text: You tie them with laces.
          - kind: phonetic
            text: It starts with "sh".
      - prompt: What do you use to cut vegetables?
        expected_answer: knife
        hints:
          - kind: descriptive
            text: It is sharp and has a handle.
      - prompt: What do you sleep on at night?
        expected_answer: bed
        hints:
          - kind: descriptive
            text: It has a pillow and a blanket.
      - prompt: What do you drink tea from?
        expected_answer: cup
        hints:
          - kind: descriptive
            text: It is small, has a handle, and holds hot drinks.
`

// StaticContentGenerator serves activities from a YAML exercise bank keyed by
// patient language. Output order is the bank order.
type StaticContentGenerator struct {
	bank exerciseBank
}

// NewStaticContentGenerator loads the bank at path, or the built-in bank when
// path is empty.
func NewStaticContentGenerator(path string) (*StaticContentGenerator, error) {
	data := []byte(builtinExerciseBank)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read exercise bank: %w", err)
		}
		data = raw
	}
	return ParseExerciseBank(data)
}

func ParseExerciseBank(data []byte) (*StaticContentGenerator, error) {
	var bank exerciseBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("parse exercise bank: %w", err)
	}
	if len(bank.Languages) == 0 {
		return nil, errors.New("exercise bank has no languages")
	}
	if _, ok := bank.Languages[bank.DefaultLanguage]; !ok {
		return nil, fmt.Errorf("exercise bank default language %q not defined", bank.DefaultLanguage)
	}
	return &StaticContentGenerator{bank: bank}, nil
}

func (g *StaticContentGenerator) Generate(ctx context.Context, req ContentRequest) (*model.GeneratedActivity, error) {
	lang := g.bank.DefaultLanguage
	if req.Profile != nil {
		if l := strings.ToLower(strings.TrimSpace(req.Profile.Language)); l != "" {
			if _, ok := g.bank.Languages[l]; ok {
				lang = l
			}
		}
	}
	set := g.bank.Languages[lang]

	entries := set.Items
	if req.ItemCount > 0 && req.ItemCount < len(entries) {
		entries = entries[:req.ItemCount]
	}

	out := &model.GeneratedActivity{Title: set.Title}
	for i, e := range entries {
		hints := make([]model.Hint, 0, len(e.Hints))
		for _, h := range e.Hints {
			hints = append(hints, model.Hint{
				ActivityType: model.ActivityTypeFreeText,
				Kind:         model.HintKind(h.Kind),
				Text:         h.Text,
			})
		}
		out.Items = append(out.Items, freeTextDefinition(i, e.Prompt, e.ExpectedAnswer, hints, e.MaxRetries))
	}
	return out, nil
}

func freeTextDefinition(order int, prompt, expected string, hints []model.Hint, maxRetries *int) model.ActivityItemDefinition {
	return model.ActivityItemDefinition{
		ActivityType: model.ActivityTypeFreeText,
		MaxRetries:   maxRetries,
		QuestionConfig: model.QuestionConfig{
			ActivityType:     model.ActivityTypeFreeText,
			Order:            order,
			Hints:            hints,
			FreeTextQuestion: &model.FreeTextQuestion{Prompt: prompt},
		},
		QuestionEvaluationConfig: model.QuestionEvaluationConfig{
			ActivityType:       model.ActivityTypeFreeText,
			FreeTextEvaluation: &model.FreeTextEvaluation{ExpectedAnswer: expected},
		},
	}
}

// ---------------------------------------------------------------------------
// LLM 生成

const contentSystemPrompt = `You are an expert language therapist who creates speech therapy questions for people with aphasia.
Use very simple and culturally familiar language. Focus on everyday daily activities such as bathing, eating,
dressing, combing hair, brushing teeth, cooking, or taking a bus. Avoid abstract topics.
Keep questions short, friendly, and easy to understand. Every question must have a single short expected answer.
For every question give one descriptive hint and one phonetic hint.`

var activityContentSchema = &AISchema{
	Name: "activity_content",
	Definition: map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"title", "items"},
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
			"items": map[string]any{
				"type":     "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"prompt", "expected_answer", "hints"},
					"properties": map[string]any{
						"prompt":          map[string]any{"type": "string"},
						"expected_answer": map[string]any{"type": "string"},
						"hints": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type":                 "object",
								"additionalProperties": false,
								"required":             []string{"kind", "text"},
								"properties": map[string]any{
									"kind": map[string]any{"type": "string", "enum": []string{"descriptive", "phonetic"}},
									"text": map[string]any{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	},
}

type llmActivityContent struct {
	Title string `json:"title"`
	Items []struct {
		Prompt         string `json:"prompt"`
		ExpectedAnswer string `json:"expected_answer"`
		Hints          []struct {
			Kind string `json:"kind"`
			Text string `json:"text"`
		} `json:"hints"`
	} `json:"items"`
}

// LLMContentGenerator asks the model for a personalised activity.
type LLMContentGenerator struct {
	AI *AIService
}

func NewLLMContentGenerator(ai *AIService) *LLMContentGenerator {
	return &LLMContentGenerator{AI: ai}
}

func (g *LLMContentGenerator) Generate(ctx context.Context, req ContentRequest) (*model.GeneratedActivity, error) {
	count := req.ItemCount
	if count <= 0 {
		count = 5
	}

	var content llmActivityContent
	if err := g.AI.ChatJSON(ctx, contentSystemPrompt, buildContentPrompt(req.Profile, count), activityContentSchema, &content); err != nil {
		return nil, err
	}

	out := &model.GeneratedActivity{Title: content.Title}
	for i, item := range content.Items {
		hints := make([]model.Hint, 0, len(item.Hints))
		for _, h := range item.Hints {
			hints = append(hints, model.Hint{
				ActivityType: model.ActivityTypeFreeText,
				Kind:         model.HintKind(h.Kind),
				Text:         h.Text,
			})
		}
		out.Items = append(out.Items, freeTextDefinition(i, item.Prompt, item.ExpectedAnswer, hints, nil))
	}
	return out, nil
}

func buildContentPrompt(p *model.PatientProfile, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d therapy questions for the following patient.\n", count)
	if p != nil {
		writeField(&b, "Name", p.Name)
		writeField(&b, "Age", p.Age)
		writeField(&b, "City", p.City)
		writeField(&b, "State", p.State)
		writeField(&b, "Country", p.Country)
		writeField(&b, "Language", p.Language)
		writeField(&b, "Diagnosis", p.Diagnosis)
		writeField(&b, "Severity", p.Severity)
		writeField(&b, "Profession", p.Profession)
		writeField(&b, "Education", p.Education)
		if p.Language != "" {
			fmt.Fprintf(&b, "Write the questions, answers and hints in %s.\n", p.Language)
		}
	}
	b.WriteString("Also give the activity a short title.")
	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	if value != "" {
		fmt.Fprintf(b, "- %s: %s\n", name, value)
	}
}
