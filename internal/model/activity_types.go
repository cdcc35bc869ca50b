package model

import (
	"errors"
	"fmt"
	"strings"
)

// Hint 提示内容，答错且题目未结束时返回给患者
type Hint struct {
	ActivityType ActivityType `json:"activity_type"`
	Kind         HintKind     `json:"kind,omitempty"`
	Text         string       `json:"text"`
}

// QuestionConfig is a tagged variant keyed by ActivityType. Exactly one
// variant payload must be set, and it must match the discriminator.
type QuestionConfig struct {
	ActivityType ActivityType `json:"activity_type"`
	Order        int          `json:"order"`
	Hints        []Hint       `json:"hints"`
	*FreeTextQuestion
}

type FreeTextQuestion struct {
	Prompt string `json:"prompt"`
}

func (c QuestionConfig) Validate() error {
	switch c.ActivityType {
	case ActivityTypeFreeText:
		if c.FreeTextQuestion == nil || strings.TrimSpace(c.Prompt) == "" {
			return errors.New("free text question requires a prompt")
		}
	default:
		return fmt.Errorf("unknown activity type %q", c.ActivityType)
	}
	for _, h := range c.Hints {
		if h.ActivityType != c.ActivityType {
			return fmt.Errorf("hint type %q does not match question type %q", h.ActivityType, c.ActivityType)
		}
	}
	return nil
}

type QuestionEvaluationConfig struct {
	ActivityType ActivityType `json:"activity_type"`
	*FreeTextEvaluation
}

type FreeTextEvaluation struct {
	ExpectedAnswer string `json:"expected_answer"`
}

func (c QuestionEvaluationConfig) Validate() error {
	switch c.ActivityType {
	case ActivityTypeFreeText:
		if c.FreeTextEvaluation == nil || strings.TrimSpace(c.ExpectedAnswer) == "" {
			return errors.New("free text evaluation requires an expected answer")
		}
	default:
		return fmt.Errorf("unknown activity type %q", c.ActivityType)
	}
	return nil
}

type AnswerPayload struct {
	ActivityType ActivityType `json:"activity_type"`
	*FreeTextAnswer
}

type FreeTextAnswer struct {
	Text         string `json:"text"`
	RecordingURL string `json:"recording_url,omitempty"`
}

func (p AnswerPayload) Validate() error {
	switch p.ActivityType {
	case ActivityTypeFreeText:
		if p.FreeTextAnswer == nil {
			return errors.New("free text answer payload missing")
		}
	default:
		return fmt.Errorf("unknown activity type %q", p.ActivityType)
	}
	return nil
}

// ResponseText returns the patient's raw response regardless of variant.
func (p AnswerPayload) ResponseText() string {
	if p.FreeTextAnswer != nil {
		return p.Text
	}
	return ""
}

// ExpectedText returns the target answer regardless of variant.
func (c QuestionEvaluationConfig) ExpectedText() string {
	if c.FreeTextEvaluation != nil {
		return c.ExpectedAnswer
	}
	return ""
}

// PromptText returns the question prompt regardless of variant.
func (c QuestionConfig) PromptText() string {
	if c.FreeTextQuestion != nil {
		return c.Prompt
	}
	return ""
}
