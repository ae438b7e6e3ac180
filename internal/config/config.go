package config

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig                 `yaml:"store" mapstructure:"store"`
	Providers    map[string]ProviderSettings `yaml:"providers" mapstructure:"providers"`
	Orchestrator OrchestratorConfig          `yaml:"orchestrator" mapstructure:"orchestrator"`
	Drift        DriftConfig                 `yaml:"drift" mapstructure:"drift"`
	Ranking      RankingConfig               `yaml:"ranking" mapstructure:"ranking"`
	Embeddings   EmbeddingsConfig            `yaml:"embeddings" mapstructure:"embeddings"`
	Prompts      PromptsConfig               `yaml:"prompts" mapstructure:"prompts"`
	Batch        BatchConfig                 `yaml:"batch" mapstructure:"batch"`
	Monitoring   MonitoringConfig            `yaml:"monitoring" mapstructure:"monitoring"`
	Server       ServerConfig                `yaml:"server" mapstructure:"server"`
	Log          LogConfig                   `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ProviderSettings configures one external text-generation provider. A
// provider without a key is skipped.
type ProviderSettings struct {
	Key                string   `yaml:"key" mapstructure:"key"`
	Model              string   `yaml:"model" mapstructure:"model"`
	ExtraModels        []string `yaml:"extra_models" mapstructure:"extra_models"`
	BaseURL            string   `yaml:"base_url" mapstructure:"base_url"`
	Tier               string   `yaml:"tier" mapstructure:"tier"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	TypicalLatencyMs   int      `yaml:"typical_latency_ms" mapstructure:"typical_latency_ms"`
	MaxTokens          int      `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OrchestratorConfig configures scheduling of provider calls.
type OrchestratorConfig struct {
	GlobalConcurrency int `yaml:"global_concurrency" mapstructure:"global_concurrency"`
	ChunkSize         int `yaml:"chunk_size" mapstructure:"chunk_size"`
	SLATargetSecs     int `yaml:"sla_target_secs" mapstructure:"sla_target_secs"`
	SLAMaxSecs        int `yaml:"sla_max_secs" mapstructure:"sla_max_secs"`
	MaxAttempts       int `yaml:"max_attempts" mapstructure:"max_attempts"`
	MediumOffsetMs    int `yaml:"medium_offset_ms" mapstructure:"medium_offset_ms"`
	SlowOffsetMs      int `yaml:"slow_offset_ms" mapstructure:"slow_offset_ms"`
	FastTimeoutSecs   int `yaml:"fast_timeout_secs" mapstructure:"fast_timeout_secs"`
	MediumTimeoutSecs int `yaml:"medium_timeout_secs" mapstructure:"medium_timeout_secs"`
	SlowTimeoutSecs   int `yaml:"slow_timeout_secs" mapstructure:"slow_timeout_secs"`
}

// DriftConfig configures drift classification and aggregation.
type DriftConfig struct {
	Enabled               bool          `yaml:"enabled" mapstructure:"enabled"`
	ThresholdStable       float64       `yaml:"threshold_stable" mapstructure:"threshold_stable"`
	ThresholdDecayed      float64       `yaml:"threshold_decayed" mapstructure:"threshold_decayed"`
	SimilarityWindowDays  int           `yaml:"similarity_window_days" mapstructure:"similarity_window_days"`
	DisagreementThreshold float64       `yaml:"disagreement_threshold" mapstructure:"disagreement_threshold"`
	Weights               WeightsConfig `yaml:"weights" mapstructure:"weights"`
}

// WeightsConfig holds the composite similarity weights.
type WeightsConfig struct {
	Self      float64 `yaml:"self" mapstructure:"self"`
	Peer      float64 `yaml:"peer" mapstructure:"peer"`
	Canonical float64 `yaml:"canonical" mapstructure:"canonical"`
}

// RankingConfig configures the ranking endpoint.
type RankingConfig struct {
	Enabled      bool `yaml:"enabled" mapstructure:"enabled"`
	DefaultLimit int  `yaml:"default_limit" mapstructure:"default_limit"`
}

// EmbeddingsConfig configures the sentence embedding endpoint. Without a
// key the drift engine falls back to lexical similarity.
type EmbeddingsConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PromptsConfig points at an optional prompt catalog file.
type PromptsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// BatchConfig configures batch selection.
type BatchConfig struct {
	Limit        int `yaml:"limit" mapstructure:"limit"`
	RefreshHours int `yaml:"refresh_hours" mapstructure:"refresh_hours"`
}

// MonitoringConfig configures the drift monitor and its alerts.
type MonitoringConfig struct {
	Enabled             bool    `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs   int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	AlertThreshold      float64 `yaml:"alert_threshold" mapstructure:"alert_threshold"`
	HighDriftLimit      int     `yaml:"high_drift_limit" mapstructure:"high_drift_limit"`
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// providerDefault is the built-in endpoint, model and scheduling profile of
// a known provider.
type providerDefault struct {
	model   string
	baseURL string
	tier    string
	rpm     int
	latency int
}

var providerDefaults = map[string]providerDefault{
	"openai":     {"gpt-4o-mini", "https://api.openai.com/v1", "fast", 500, 2000},
	"anthropic":  {"claude-3-haiku-20240307", "https://api.anthropic.com", "fast", 50, 2500},
	"groq":       {"llama-3.1-8b-instant", "https://api.groq.com/openai/v1", "fast", 30, 800},
	"google":     {"gemini-1.5-flash", "https://generativelanguage.googleapis.com/v1beta", "fast", 60, 2000},
	"together":   {"meta-llama/Llama-3.3-70B-Instruct-Turbo", "https://api.together.xyz/v1", "medium", 60, 5000},
	"mistral":    {"mistral-small-latest", "https://api.mistral.ai/v1", "medium", 60, 4000},
	"xai":        {"grok-2-latest", "https://api.x.ai/v1", "medium", 60, 5000},
	"openrouter": {"meta-llama/llama-3.1-8b-instruct", "https://openrouter.ai/api/v1", "medium", 60, 6000},
	"deepseek":   {"deepseek-chat", "https://api.deepseek.com/v1", "slow", 60, 12000},
	"perplexity": {"sonar-pro", "https://api.perplexity.ai", "slow", 20, 10000},
}

// KnownProviders returns the names of all built-in providers, sorted.
func KnownProviders() []string {
	names := make([]string, 0, len(providerDefaults))
	for name := range providerDefaults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DRIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("orchestrator.global_concurrency", 64)
	v.SetDefault("orchestrator.chunk_size", 10)
	v.SetDefault("orchestrator.sla_target_secs", 3600)
	v.SetDefault("orchestrator.sla_max_secs", 7200)
	v.SetDefault("orchestrator.max_attempts", 3)
	v.SetDefault("orchestrator.medium_offset_ms", 100)
	v.SetDefault("orchestrator.slow_offset_ms", 500)
	v.SetDefault("orchestrator.fast_timeout_secs", 15)
	v.SetDefault("orchestrator.medium_timeout_secs", 45)
	v.SetDefault("orchestrator.slow_timeout_secs", 90)
	v.SetDefault("drift.enabled", true)
	v.SetDefault("drift.threshold_stable", 0.3)
	v.SetDefault("drift.threshold_decayed", 0.7)
	v.SetDefault("drift.similarity_window_days", 7)
	v.SetDefault("drift.disagreement_threshold", 0.2)
	v.SetDefault("drift.weights.self", 0.4)
	v.SetDefault("drift.weights.peer", 0.35)
	v.SetDefault("drift.weights.canonical", 0.25)
	v.SetDefault("ranking.enabled", true)
	v.SetDefault("ranking.default_limit", 100)
	v.SetDefault("embeddings.key", "")
	v.SetDefault("embeddings.base_url", "https://api.openai.com/v1")
	v.SetDefault("embeddings.model", "text-embedding-3-small")
	v.SetDefault("prompts.path", "")
	v.SetDefault("batch.limit", 0)
	v.SetDefault("batch.refresh_hours", 24)
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.check_interval_secs", 3600)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.alert_threshold", 0.3)
	v.SetDefault("monitoring.high_drift_limit", 10)
	v.SetDefault("monitoring.webhook_url", "")

	// Registering every provider key lets env vars such as
	// DRIFT_PROVIDERS_OPENAI_KEY resolve through AutomaticEnv.
	for name, d := range providerDefaults {
		prefix := "providers." + name + "."
		v.SetDefault(prefix+"key", "")
		v.SetDefault(prefix+"model", d.model)
		v.SetDefault(prefix+"base_url", d.baseURL)
		v.SetDefault(prefix+"tier", d.tier)
		v.SetDefault(prefix+"rate_limit_per_minute", d.rpm)
		v.SetDefault(prefix+"typical_latency_ms", d.latency)
		v.SetDefault(prefix+"max_tokens", 500)
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// ConfiguredProviders returns the names of providers that carry a key, sorted.
func (c *Config) ConfiguredProviders() []string {
	var names []string
	for name, p := range c.Providers {
		if strings.TrimSpace(p.Key) != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
