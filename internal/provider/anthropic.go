package provider

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/domain-runner/internal/model"
	"github.com/sells-group/domain-runner/internal/resilience"
	"github.com/sells-group/domain-runner/pkg/anthropic"
)

// AnthropicAdapter queries the Anthropic Messages API.
type AnthropicAdapter struct {
	cfg       model.ProviderConfig
	apiKey    string
	maxTokens int
	client    anthropic.Client
}

// NewAnthropicAdapter creates an adapter around client.
func NewAnthropicAdapter(cfg model.ProviderConfig, apiKey string, maxTokens int, client anthropic.Client) *AnthropicAdapter {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &AnthropicAdapter{cfg: cfg, apiKey: apiKey, maxTokens: maxTokens, client: client}
}

// Config returns the provider configuration.
func (a *AnthropicAdapter) Config() model.ProviderConfig { return a.cfg }

// IsConfigured reports whether credentials are present.
func (a *AnthropicAdapter) IsConfigured() bool { return strings.TrimSpace(a.apiKey) != "" }

// Query renders the prompt for subject and issues one message call.
func (a *AnthropicAdapter) Query(ctx context.Context, subject string, prompt model.Prompt) (*model.RawResponse, error) {
	start := time.Now()
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.cfg.Model,
		MaxTokens:   int64(a.maxTokens),
		Messages:    []anthropic.Message{{Role: userRole, Content: prompt.Render(subject)}},
		Temperature: &zeroTemperature,
	})
	if err != nil {
		return nil, resilience.NewProviderError(a.cfg.Name, a.cfg.Model, anthropic.StatusCode(err), err)
	}
	if len(resp.Content) == 0 {
		return nil, resilience.NewProviderError(a.cfg.Name, a.cfg.Model, 0, eris.New("response has no content"))
	}
	resp.Usage.LogCost(a.cfg.Model, subject)

	return &model.RawResponse{
		Provider:    a.cfg.Name,
		Model:       a.cfg.Model,
		Text:        resp.Text(),
		Payload:     resp.Raw,
		LatencyMs:   elapsedMs(start),
		QualityFlag: model.QualityHigh,
		Meta:        resp.Usage.Meta(a.cfg.Model),
	}, nil
}
