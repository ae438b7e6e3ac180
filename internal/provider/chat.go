package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/domain-runner/internal/model"
	"github.com/sells-group/domain-runner/internal/resilience"
	"github.com/sells-group/domain-runner/pkg/chat"
)

// ChatAdapter queries an OpenAI-compatible chat completions endpoint.
type ChatAdapter struct {
	cfg       model.ProviderConfig
	apiKey    string
	maxTokens int
	client    chat.Client
}

// NewChatAdapter creates an adapter around client.
func NewChatAdapter(cfg model.ProviderConfig, apiKey string, maxTokens int, client chat.Client) *ChatAdapter {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &ChatAdapter{cfg: cfg, apiKey: apiKey, maxTokens: maxTokens, client: client}
}

// Config returns the provider configuration.
func (a *ChatAdapter) Config() model.ProviderConfig { return a.cfg }

// IsConfigured reports whether credentials are present.
func (a *ChatAdapter) IsConfigured() bool { return strings.TrimSpace(a.apiKey) != "" }

// Query renders the prompt for subject and issues one completion call.
func (a *ChatAdapter) Query(ctx context.Context, subject string, prompt model.Prompt) (*model.RawResponse, error) {
	start := time.Now()
	maxTokens := a.maxTokens
	resp, err := a.client.ChatCompletion(ctx, chat.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Messages:    []chat.Message{{Role: userRole, Content: prompt.Render(subject)}},
		Temperature: &zeroTemperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		status := 0
		var se *chat.StatusError
		if errors.As(err, &se) {
			status = se.StatusCode
		}
		return nil, resilience.NewProviderError(a.cfg.Name, a.cfg.Model, status, err)
	}
	if len(resp.Choices) == 0 {
		return nil, resilience.NewProviderError(a.cfg.Name, a.cfg.Model, 0, eris.New("response has no choices"))
	}

	raw := &model.RawResponse{
		Provider:    a.cfg.Name,
		Model:       a.cfg.Model,
		Text:        resp.Text(),
		Payload:     resp.Raw,
		LatencyMs:   elapsedMs(start),
		QualityFlag: model.QualityHigh,
	}
	if a.cfg.Name == "perplexity" {
		raw.QualityFlag = model.QualitySearchEnhanced
		raw.Meta = map[string]any{
			"provider":        a.cfg.Name,
			"model":           a.cfg.Model,
			"search_enhanced": true,
			"citations":       len(resp.Citations),
		}
	}
	return raw, nil
}
