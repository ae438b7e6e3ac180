package provider

import (
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/domain-runner/internal/config"
	"github.com/sells-group/domain-runner/internal/model"
	"github.com/sells-group/domain-runner/pkg/anthropic"
	"github.com/sells-group/domain-runner/pkg/chat"
	"github.com/sells-group/domain-runner/pkg/gemini"
)

// Registry indexes adapters by "provider/model".
type Registry struct {
	adapters []Adapter
	byKey    map[string]Adapter
}

// NewRegistry indexes adapters in the given order.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{byKey: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters = append(r.adapters, a)
		r.byKey[a.Config().Key()] = a
	}
	return r
}

// Build constructs one adapter per configured (provider, model) pair. Providers
// without credentials are still listed but report IsConfigured false.
func Build(cfg *config.Config) *Registry {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	var adapters []Adapter
	for _, name := range names {
		ps := cfg.Providers[name]
		models := append([]string{ps.Model}, ps.ExtraModels...)
		for _, m := range models {
			if m == "" {
				continue
			}
			pc := providerConfig(name, m, ps, cfg.Orchestrator)
			adapters = append(adapters, newAdapter(pc, ps))
		}
	}

	r := NewRegistry(adapters...)
	zap.L().Info("provider: registry built",
		zap.Int("adapters", len(adapters)),
		zap.Int("configured", len(r.Configured())),
	)
	return r
}

func providerConfig(name, modelName string, ps config.ProviderSettings, oc config.OrchestratorConfig) model.ProviderConfig {
	tier := model.SpeedTier(ps.Tier)
	if !tier.Valid() {
		tier = model.TierMedium
	}
	return model.ProviderConfig{
		Name:               name,
		Model:              modelName,
		BaseURL:            ps.BaseURL,
		Tier:               tier,
		RateLimitPerMinute: ps.RateLimitPerMinute,
		TypicalLatency:     time.Duration(ps.TypicalLatencyMs) * time.Millisecond,
		Timeout:            TierTimeout(tier, oc),
	}
}

// TierTimeout returns the network timeout of a speed tier.
func TierTimeout(tier model.SpeedTier, oc config.OrchestratorConfig) time.Duration {
	secs := oc.MediumTimeoutSecs
	switch tier {
	case model.TierFast:
		secs = oc.FastTimeoutSecs
	case model.TierSlow:
		secs = oc.SlowTimeoutSecs
	}
	if secs <= 0 {
		secs = 15
	}
	return time.Duration(secs) * time.Second
}

func newAdapter(pc model.ProviderConfig, ps config.ProviderSettings) Adapter {
	hc := &http.Client{Timeout: pc.Timeout}
	switch pc.Name {
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithHTTPClient(hc)}
		if pc.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(pc.BaseURL))
		}
		return NewAnthropicAdapter(pc, ps.Key, ps.MaxTokens, anthropic.NewClient(ps.Key, opts...))
	case "google":
		opts := []gemini.Option{gemini.WithHTTPClient(hc)}
		if pc.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(pc.BaseURL))
		}
		return NewGeminiAdapter(pc, ps.Key, ps.MaxTokens, gemini.NewClient(ps.Key, opts...))
	default:
		opts := []chat.Option{chat.WithHTTPClient(hc), chat.WithModel(pc.Model)}
		if pc.BaseURL != "" {
			opts = append(opts, chat.WithBaseURL(pc.BaseURL))
		}
		return NewChatAdapter(pc, ps.Key, ps.MaxTokens, chat.NewClient(ps.Key, opts...))
	}
}

// All returns every adapter in registry order.
func (r *Registry) All() []Adapter {
	return r.adapters
}

// Configured returns the adapters that carry credentials.
func (r *Registry) Configured() []Adapter {
	var out []Adapter
	for _, a := range r.adapters {
		if a.IsConfigured() {
			out = append(out, a)
		}
	}
	return out
}

// ByKey returns the adapter for "provider/model", or nil.
func (r *Registry) ByKey(key string) Adapter {
	return r.byKey[key]
}

// Info describes one adapter for listings.
type Info struct {
	model.ProviderConfig
	Configured bool `json:"configured"`
}

// Infos lists every adapter with its configuration state.
func (r *Registry) Infos() []Info {
	out := make([]Info, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, Info{ProviderConfig: a.Config(), Configured: a.IsConfigured()})
	}
	return out
}
