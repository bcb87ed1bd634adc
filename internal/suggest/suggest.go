// Package suggest is the boundary to the AI generation service: free text
// in, structured activity suggestion out. The call is opaque, potentially
// slow and fallible; no retry happens here - callers decide whether to ask
// again. Timeouts are the caller's context deadline.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dyluth/vesper/pkg/store"
)

// Suggestion is the structured result of one generation call, carrying the
// fields needed to populate a backlog candidate or a scheduled activity.
type Suggestion struct {
	Title           string             `json:"title"`
	DurationMinutes int                `json:"duration_minutes"`
	StaminaCost     int                `json:"stamina_cost"`
	Priority        store.Priority     `json:"priority"`
	ActivityType    store.ActivityType `json:"activity_type"`
	Subtasks        []string           `json:"subtasks,omitempty"`
}

// Generator produces structured suggestions from free-form prompts.
type Generator interface {
	// Suggest returns a single structured suggestion for the prompt.
	Suggest(ctx context.Context, prompt string) (*Suggestion, error)

	// SuggestBatch returns up to n suggestions, for seeding a backlog from
	// one free-form brain dump.
	SuggestBatch(ctx context.Context, prompt string, n int) ([]Suggestion, error)
}

const systemPrompt = `You turn a short free-form task description into a JSON object for a day planner.
Respond with JSON only, no prose and no code fences.
Schema: {"title": string, "duration_minutes": int, "stamina_cost": int (1-10),
"priority": "low"|"normal"|"high"|"urgent",
"activity_type": "deep_work"|"errand"|"exercise"|"social"|"rest"|"admin",
"subtasks": [string, ...]}`

const batchSystemPrompt = `You turn a free-form brain dump into a JSON array of task objects for a day planner.
Respond with a JSON array only, no prose and no code fences.
Each element follows: {"title": string, "duration_minutes": int, "stamina_cost": int (1-10),
"priority": "low"|"normal"|"high"|"urgent",
"activity_type": "deep_work"|"errand"|"exercise"|"social"|"rest"|"admin",
"subtasks": [string, ...]}`

// AnthropicGenerator implements Generator against the Anthropic Messages
// API.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic creates a generator using the given API key. Model may be
// empty to use the default; maxTokens <= 0 uses a sensible cap.
func NewAnthropic(apiKey, model string, maxTokens int64) (*AnthropicGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key cannot be empty")
	}

	m := anthropic.ModelClaudeSonnet4_0
	if model != "" {
		m = anthropic.Model(model)
	}

	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &AnthropicGenerator{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     m,
		maxTokens: maxTokens,
	}, nil
}

// Suggest implements Generator.Suggest.
func (g *AnthropicGenerator) Suggest(ctx context.Context, prompt string) (*Suggestion, error) {
	text, err := g.complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	s, err := decodeSuggestion([]byte(stripFences(text)))
	if err != nil {
		return nil, fmt.Errorf("generation returned unusable output: %w", err)
	}

	return s, nil
}

// SuggestBatch implements Generator.SuggestBatch.
func (g *AnthropicGenerator) SuggestBatch(ctx context.Context, prompt string, n int) ([]Suggestion, error) {
	if n <= 0 {
		n = 5
	}

	user := fmt.Sprintf("Produce at most %d tasks.\n\n%s", n, prompt)
	text, err := g.complete(ctx, batchSystemPrompt, user)
	if err != nil {
		return nil, err
	}

	batch, err := decodeBatch([]byte(stripFences(text)))
	if err != nil {
		return nil, fmt.Errorf("generation returned unusable output: %w", err)
	}

	if len(batch) > n {
		batch = batch[:n]
	}
	return batch, nil
}

// complete performs the single opaque model call.
func (g *AnthropicGenerator) complete(ctx context.Context, system, user string) (string, error) {
	message, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("generation call failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("generation returned no text content")
	}

	return sb.String(), nil
}

// decodeSuggestion parses and validates a single suggestion object.
func decodeSuggestion(raw []byte) (*Suggestion, error) {
	var s Suggestion
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse suggestion: %w", err)
	}

	if err := validateSuggestion(&s); err != nil {
		return nil, err
	}

	return &s, nil
}

// decodeBatch parses and validates a suggestion array, dropping invalid
// elements rather than failing the whole batch.
func decodeBatch(raw []byte) ([]Suggestion, error) {
	var batch []Suggestion
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("failed to parse suggestion batch: %w", err)
	}

	out := make([]Suggestion, 0, len(batch))
	for i := range batch {
		if err := validateSuggestion(&batch[i]); err != nil {
			continue
		}
		out = append(out, batch[i])
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("suggestion batch contained no usable entries")
	}

	return out, nil
}

func validateSuggestion(s *Suggestion) error {
	if s.Title == "" {
		return fmt.Errorf("suggestion has no title")
	}

	if s.DurationMinutes <= 0 {
		s.DurationMinutes = 30
	}

	if s.StaminaCost < 1 {
		s.StaminaCost = 1
	}
	if s.StaminaCost > 10 {
		s.StaminaCost = 10
	}

	if s.Priority.Validate() != nil {
		s.Priority = store.PriorityNormal
	}

	if s.ActivityType.Validate() != nil {
		s.ActivityType = store.ActivityAdmin
	}

	return nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite instructions.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}

	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
