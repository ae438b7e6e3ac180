package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/domain-runner/internal/model"
	"github.com/sells-group/domain-runner/internal/resilience"
	"github.com/sells-group/domain-runner/pkg/gemini"
)

// GeminiAdapter queries the Gemini generateContent API.
type GeminiAdapter struct {
	cfg       model.ProviderConfig
	apiKey    string
	maxTokens int
	client    gemini.Client
}

// NewGeminiAdapter creates an adapter around client.
func NewGeminiAdapter(cfg model.ProviderConfig, apiKey string, maxTokens int, client gemini.Client) *GeminiAdapter {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &GeminiAdapter{cfg: cfg, apiKey: apiKey, maxTokens: maxTokens, client: client}
}

// Config returns the provider configuration.
func (a *GeminiAdapter) Config() model.ProviderConfig { return a.cfg }

// IsConfigured reports whether credentials are present.
func (a *GeminiAdapter) IsConfigured() bool { return strings.TrimSpace(a.apiKey) != "" }

// Query renders the prompt for subject and issues one generation call.
func (a *GeminiAdapter) Query(ctx context.Context, subject string, prompt model.Prompt) (*model.RawResponse, error) {
	start := time.Now()
	resp, err := a.client.GenerateContent(ctx, a.cfg.Model, gemini.GenerateRequest{
		Contents: []gemini.Content{{Role: userRole, Parts: []gemini.Part{{Text: prompt.Render(subject)}}}},
		GenerationConfig: &gemini.GenerationConfig{
			MaxOutputTokens: a.maxTokens,
			Temperature:     &zeroTemperature,
		},
	})
	if err != nil {
		status := 0
		var se *gemini.StatusError
		if errors.As(err, &se) {
			status = se.StatusCode
		}
		return nil, resilience.NewProviderError(a.cfg.Name, a.cfg.Model, status, err)
	}
	if len(resp.Candidates) == 0 {
		return nil, resilience.NewProviderError(a.cfg.Name, a.cfg.Model, 0, eris.New("response has no candidates"))
	}

	return &model.RawResponse{
		Provider:    a.cfg.Name,
		Model:       a.cfg.Model,
		Text:        resp.Text(),
		Payload:     resp.Raw,
		LatencyMs:   elapsedMs(start),
		QualityFlag: model.QualityHigh,
	}, nil
}
