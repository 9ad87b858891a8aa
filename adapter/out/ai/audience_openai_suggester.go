// Package ai implements the segment suggestion collaborator on OpenAI.
package ai

import (
	"context"
	"errors"
	"time"

	"audience_server/core/domain"
	"audience_server/core/port/out"
	"audience_server/pkg/apperr"
	"audience_server/pkg/logger"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

const DefaultModel = "gpt-4o-mini"

// Config holds OpenAI settings.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Suggester implements out.SegmentSuggester with a JSON-mode chat completion
// behind a circuit breaker.
type Suggester struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	cb          *gobreaker.CircuitBreaker
}

var _ out.SegmentSuggester = (*Suggester)(nil)

func NewSuggester(cfg Config) *Suggester {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.4
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	cbSettings := gobreaker.Settings{
		Name:        "openai-suggestions",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &Suggester{
		client:      openai.NewClient(cfg.APIKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		timeout:     timeout,
		cb:          gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// Suggest sends the population summary to the model and parses its proposals.
func (s *Suggester) Suggest(ctx context.Context, summary *domain.PopulationSummary, existingNames []string) ([]*domain.AISegmentSuggestion, error) {
	prompt, err := buildUserPrompt(summary, existingNames)
	if err != nil {
		return nil, apperr.AIUnavailable(err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.cb.Execute(func() (any, error) {
		return s.complete(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperr.AIUnavailable(err).WithDetail("circuit", s.cb.State().String())
		}
		return nil, apperr.AIUnavailable(err)
	}

	suggestions, err := parseSuggestions(result.(string))
	if err != nil {
		return nil, apperr.AIMalformedResponse(err)
	}
	return suggestions, nil
}

func (s *Suggester) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}

	return resp.Choices[0].Message.Content, nil
}
