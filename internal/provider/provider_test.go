package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/domain-runner/internal/config"
	"github.com/sells-group/domain-runner/internal/model"
	"github.com/sells-group/domain-runner/internal/resilience"
	"github.com/sells-group/domain-runner/pkg/anthropic"
	"github.com/sells-group/domain-runner/pkg/chat"
	"github.com/sells-group/domain-runner/pkg/gemini"
	"github.com/sells-group/domain-runner/pkg/gemini/mocks"
)

var testPrompt = model.Prompt{Type: "business_analysis", Template: "What does {domain} do?"}

func TestChatAdapter_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","choices":[{"index":0,"message":{"role":"assistant","content":"Example Corp sells widgets."}}]}`))
	}))
	defer srv.Close()

	cfg := model.ProviderConfig{Name: "openai", Model: "gpt-4o-mini", Tier: model.TierFast}
	a := NewChatAdapter(cfg, "sk-test", 0, chat.NewClient("sk-test", chat.WithBaseURL(srv.URL)))
	require.True(t, a.IsConfigured())

	raw, err := a.Query(context.Background(), "example.com", testPrompt)
	require.NoError(t, err)
	assert.Equal(t, "openai", raw.Provider)
	assert.Equal(t, "gpt-4o-mini", raw.Model)
	assert.Equal(t, "Example Corp sells widgets.", raw.Text)
	assert.Equal(t, model.QualityHigh, raw.QualityFlag)
	assert.Contains(t, string(raw.Payload), `"c1"`)
	assert.GreaterOrEqual(t, raw.LatencyMs, int64(0))
	assert.Nil(t, raw.Meta)
}

func TestChatAdapter_Perplexity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p1","choices":[{"index":0,"message":{"content":"Example Corp is a widget maker."}}],"citations":["https://example.com","https://news.example"]}`))
	}))
	defer srv.Close()

	cfg := model.ProviderConfig{Name: "perplexity", Model: "sonar-pro", Tier: model.TierSlow}
	a := NewChatAdapter(cfg, "pplx", 0, chat.NewClient("pplx", chat.WithBaseURL(srv.URL)))

	raw, err := a.Query(context.Background(), "example.com", testPrompt)
	require.NoError(t, err)
	assert.Equal(t, model.QualitySearchEnhanced, raw.QualityFlag)
	assert.Equal(t, true, raw.Meta["search_enhanced"])
	assert.Equal(t, "perplexity", raw.Meta["provider"])
	assert.Equal(t, 2, raw.Meta["citations"])
}

func TestChatAdapter_RendersPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chat.ChatCompletionRequest
		require.NoError(t, decodeJSON(r, &req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "What does acme.io do?", req.Messages[0].Content)
		assert.Equal(t, "deepseek-chat", req.Model)
		require.NotNil(t, req.Temperature)
		assert.Equal(t, 0.0, *req.Temperature)
		require.NotNil(t, req.MaxTokens)
		assert.Equal(t, 300, *req.MaxTokens)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok answer text"}}]}`))
	}))
	defer srv.Close()

	cfg := model.ProviderConfig{Name: "deepseek", Model: "deepseek-chat"}
	a := NewChatAdapter(cfg, "k", 300, chat.NewClient("k", chat.WithBaseURL(srv.URL)))
	_, err := a.Query(context.Background(), "acme.io", testPrompt)
	require.NoError(t, err)
}

func TestChatAdapter_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		transient  bool
	}{
		{"server error", http.StatusBadGateway, `{"error":"bad gateway"}`, http.StatusBadGateway, true},
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`, http.StatusTooManyRequests, true},
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`, http.StatusUnauthorized, false},
		{"no choices", http.StatusOK, `{"choices":[]}`, 0, false},
		{"malformed", http.StatusOK, `{nope`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			cfg := model.ProviderConfig{Name: "groq", Model: "llama"}
			a := NewChatAdapter(cfg, "k", 0, chat.NewClient("k", chat.WithBaseURL(srv.URL)))
			_, err := a.Query(context.Background(), "example.com", testPrompt)
			require.Error(t, err)

			var pe *resilience.ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, "groq", pe.Provider)
			assert.Equal(t, tt.wantStatus, pe.StatusCode)
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
		})
	}
}

func TestAnthropicAdapter_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2023-06-01", r.Header.Get("Anthropic-Version"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-haiku-20240307","stop_reason":"end_turn","content":[{"type":"text","text":"Example Corp sells widgets."}],"usage":{"input_tokens":12,"output_tokens":6}}`))
	}))
	defer srv.Close()

	cfg := model.ProviderConfig{Name: "anthropic", Model: "claude-3-haiku-20240307", Tier: model.TierFast}
	a := NewAnthropicAdapter(cfg, "sk-ant", 0, anthropic.NewClient("sk-ant", anthropic.WithBaseURL(srv.URL)))

	raw, err := a.Query(context.Background(), "example.com", testPrompt)
	require.NoError(t, err)
	assert.Equal(t, "Example Corp sells widgets.", raw.Text)
	assert.Equal(t, model.QualityHigh, raw.QualityFlag)
	assert.Contains(t, string(raw.Payload), "msg_1")
	assert.Equal(t, int64(12), raw.Meta["input_tokens"])
	assert.Equal(t, int64(6), raw.Meta["output_tokens"])
}

func TestAnthropicAdapter_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
	}))
	defer srv.Close()

	cfg := model.ProviderConfig{Name: "anthropic", Model: "claude-3-haiku-20240307"}
	a := NewAnthropicAdapter(cfg, "sk-ant", 0, anthropic.NewClient("sk-ant", anthropic.WithBaseURL(srv.URL)))

	_, err := a.Query(context.Background(), "example.com", testPrompt)
	require.Error(t, err)
	var pe *resilience.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusServiceUnavailable, pe.StatusCode)
	assert.True(t, resilience.IsTransient(err))
}

func TestGeminiAdapter_Query(t *testing.T) {
	mc := mocks.NewMockClient(t)
	mc.On("GenerateContent", mock.Anything, "gemini-1.5-flash", mock.MatchedBy(func(req gemini.GenerateRequest) bool {
		return req.Contents[0].Parts[0].Text == "What does example.com do?" && req.GenerationConfig.MaxOutputTokens == 500
	})).Return(&gemini.GenerateResponse{
		Candidates: []gemini.Candidate{{Content: gemini.Content{Parts: []gemini.Part{{Text: "Example Corp sells widgets."}}}}},
		Raw:        []byte(`{"candidates":[]}`),
	}, nil)

	cfg := model.ProviderConfig{Name: "google", Model: "gemini-1.5-flash"}
	a := NewGeminiAdapter(cfg, "g-key", 0, mc)

	raw, err := a.Query(context.Background(), "example.com", testPrompt)
	require.NoError(t, err)
	assert.Equal(t, "Example Corp sells widgets.", raw.Text)
	assert.Equal(t, "google", raw.Provider)
}

func TestGeminiAdapter_Errors(t *testing.T) {
	mc := mocks.NewMockClient(t)
	mc.On("GenerateContent", mock.Anything, "gemini-1.5-flash", mock.Anything).
		Return(nil, &gemini.StatusError{StatusCode: 500, Body: "boom"}).Once()
	mc.On("GenerateContent", mock.Anything, "gemini-1.5-flash", mock.Anything).
		Return(&gemini.GenerateResponse{}, nil).Once()

	cfg := model.ProviderConfig{Name: "google", Model: "gemini-1.5-flash"}
	a := NewGeminiAdapter(cfg, "g-key", 0, mc)

	_, err := a.Query(context.Background(), "example.com", testPrompt)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	_, err = a.Query(context.Background(), "example.com", testPrompt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestIsConfigured(t *testing.T) {
	cfg := model.ProviderConfig{Name: "openai", Model: "gpt-4o-mini"}
	assert.False(t, NewChatAdapter(cfg, "", 0, chat.NewClient("")).IsConfigured())
	assert.False(t, NewChatAdapter(cfg, "   ", 0, chat.NewClient("")).IsConfigured())
	assert.False(t, NewAnthropicAdapter(cfg, "", 0, anthropic.NewClient("")).IsConfigured())
	assert.False(t, NewGeminiAdapter(cfg, "", 0, gemini.NewClient("")).IsConfigured())
}

func TestBuild(t *testing.T) {
	cfg := &config.Config{
		Orchestrator: config.OrchestratorConfig{FastTimeoutSecs: 15, MediumTimeoutSecs: 45, SlowTimeoutSecs: 90},
		Providers: map[string]config.ProviderSettings{
			"openai":     {Key: "sk", Model: "gpt-4o-mini", Tier: "fast", RateLimitPerMinute: 500},
			"anthropic":  {Key: "sk-ant", Model: "claude-3-haiku-20240307", Tier: "fast"},
			"google":     {Model: "gemini-1.5-flash", Tier: "fast"},
			"perplexity": {Key: "pplx", Model: "sonar-pro", ExtraModels: []string{"sonar"}, Tier: "slow"},
			"custom":     {Key: "c", Model: "m", Tier: "bogus"},
		},
	}

	r := Build(cfg)
	require.Len(t, r.All(), 6)
	assert.Len(t, r.Configured(), 5)

	assert.IsType(t, &AnthropicAdapter{}, r.ByKey("anthropic/claude-3-haiku-20240307"))
	assert.IsType(t, &GeminiAdapter{}, r.ByKey("google/gemini-1.5-flash"))
	assert.IsType(t, &ChatAdapter{}, r.ByKey("openai/gpt-4o-mini"))
	assert.NotNil(t, r.ByKey("perplexity/sonar"))
	assert.Nil(t, r.ByKey("openai/unknown"))

	slow := r.ByKey("perplexity/sonar-pro").Config()
	assert.Equal(t, model.TierSlow, slow.Tier)
	assert.Equal(t, 90*time.Second, slow.Timeout)

	custom := r.ByKey("custom/m").Config()
	assert.Equal(t, model.TierMedium, custom.Tier)
	assert.Equal(t, 45*time.Second, custom.Timeout)

	infos := r.Infos()
	require.Len(t, infos, 6)
	assert.Equal(t, "anthropic", infos[0].Name)
	assert.True(t, infos[0].Configured)
}

func TestTierTimeout_Default(t *testing.T) {
	assert.Equal(t, 15*time.Second, TierTimeout(model.TierFast, config.OrchestratorConfig{}))
}
