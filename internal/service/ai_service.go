package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sia_backend/internal/config"
	"sia_backend/pkg/logger"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
	"github.com/santhosh-tekuri/jsonschema/v6"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrInvalidAIResponse is returned when the model output cannot be parsed or
// does not match the requested schema.
var ErrInvalidAIResponse = errors.New("invalid AI response")

// AIService talks to an OpenAI-compatible chat completion endpoint. Every
// call runs through a retrier inside a circuit breaker.
type AIService struct {
	client  *openai.Client
	model   string
	timeout time.Duration

	breaker circuitbreaker.CircuitBreaker[string]
	retrier retry.Retry[string]
}

// AISchema describes the JSON object a completion must return.
type AISchema struct {
	Name       string
	Definition map[string]any
}

var aiSchemaCache sync.Map // name -> *jsonschema.Schema

func NewAIService(cfg config.AIConfig) *AIService {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &AIService{
		client:  openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		timeout: timeout,
	}

	s.breaker = circuitbreaker.New[string](circuitbreaker.Config{
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Log.Warn("AI circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	s.retrier = retry.New[string](retry.Config{
		MaxAttempts:   3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable:   isRetryableAIError,
	})
	return s
}

// Chat 发送一轮 system + user 对话，返回模型文本
func (s *AIService) Chat(ctx context.Context, system, prompt string) (string, error) {
	return s.complete(ctx, system, prompt, nil)
}

// ChatJSON requests a JSON object matching schema, validates it and decodes it
// into out.
func (s *AIService) ChatJSON(ctx context.Context, system, prompt string, schema *AISchema, out any) error {
	content, err := s.complete(ctx, system, prompt, schema)
	if err != nil {
		return err
	}
	if err := validateAgainstSchema(schema, content); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return errors.Join(ErrInvalidAIResponse, err)
	}
	return nil
}

func (s *AIService) complete(ctx context.Context, system, prompt string, schema *AISchema) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if schema != nil {
		raw, err := json.Marshal(schema.Definition)
		if err != nil {
			return "", fmt.Errorf("marshal schema: %w", err)
		}
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schema.Name,
				Schema: json.RawMessage(raw),
				Strict: true,
			},
		}
	}

	op := func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		resp, err := s.client.CreateChatCompletion(callCtx, req)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("%w: no choices", ErrInvalidAIResponse)
		}
		return resp.Choices[0].Message.Content, nil
	}

	return s.breaker.Execute(ctx, func(ctx context.Context) (string, error) {
		return s.retrier.Do(ctx, op)
	})
}

func isRetryableAIError(err error) bool {
	if err == nil || errors.Is(err, ErrInvalidAIResponse) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= 500 || reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func validateAgainstSchema(schema *AISchema, content string) error {
	if schema == nil {
		return nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return errors.Join(ErrInvalidAIResponse, err)
	}
	compiled, err := compileAISchema(schema)
	if err != nil {
		return err
	}
	if err := compiled.Validate(parsed); err != nil {
		return errors.Join(ErrInvalidAIResponse, err)
	}
	return nil
}

func compileAISchema(schema *AISchema) (*jsonschema.Schema, error) {
	if cached, ok := aiSchemaCache.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// jsonschema 需要解析后的 any 值
	raw, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, err
	}
	var def any
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := c.AddResource(url, def); err != nil {
		return nil, fmt.Errorf("add schema %q: %w", schema.Name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", schema.Name, err)
	}
	aiSchemaCache.Store(schema.Name, compiled)
	return compiled, nil
}
