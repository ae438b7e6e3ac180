package model

import (
	"strings"
	"time"
)

// DomainPlaceholder is substituted with the subject name when a prompt is rendered.
const DomainPlaceholder = "{domain}"

// Subject is a tracked domain that providers are queried about.
type Subject struct {
	ID        string    `json:"id"`
	Domain    string    `json:"domain"`
	Category  string    `json:"category,omitempty"`
	Active    bool      `json:"active"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// Prompt is an immutable question template. PromptType tags the template
// (e.g. "business_analysis") and Template carries a {domain} placeholder.
type Prompt struct {
	Type     string `json:"prompt_type" yaml:"type"`
	Template string `json:"template" yaml:"template"`
}

// Render substitutes the subject into the prompt template.
func (p Prompt) Render(subject string) string {
	return strings.ReplaceAll(p.Template, DomainPlaceholder, subject)
}

// SpeedTier is a coarse latency class used to stagger provider calls.
type SpeedTier string

const (
	TierFast   SpeedTier = "fast"
	TierMedium SpeedTier = "medium"
	TierSlow   SpeedTier = "slow"
)

// Valid reports whether t is one of the known tiers.
func (t SpeedTier) Valid() bool {
	switch t {
	case TierFast, TierMedium, TierSlow:
		return true
	}
	return false
}

// ProviderConfig describes one (provider, model) pair. It is read-only
// after construction.
type ProviderConfig struct {
	Name               string        `json:"name"`
	Model              string        `json:"model"`
	BaseURL            string        `json:"base_url"`
	Tier               SpeedTier     `json:"tier"`
	RateLimitPerMinute int           `json:"rate_limit_per_minute"`
	TypicalLatency     time.Duration `json:"typical_latency"`
	Timeout            time.Duration `json:"timeout"`
}

// Key returns the "provider/model" identifier used for persistence.
func (c ProviderConfig) Key() string {
	return c.Name + "/" + c.Model
}

// MinInterval is the minimum spacing between two admitted calls to this
// provider. Zero means no pacing.
func (c ProviderConfig) MinInterval() time.Duration {
	if c.RateLimitPerMinute <= 0 {
		return 0
	}
	return time.Minute / time.Duration(c.RateLimitPerMinute)
}
