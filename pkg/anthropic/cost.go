package anthropic

import "go.uber.org/zap"

// TokenUsage is the token count reported with a message.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// pricePerMTok is {input, output} USD per million tokens.
var pricePerMTok = map[string][2]float64{
	"claude-3-haiku-20240307":    {0.25, 1.25},
	"claude-3-5-haiku-20241022":  {0.80, 4.00},
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
}

// EstimateCost prices u for model in USD. Unknown models cost 0.
func (u TokenUsage) EstimateCost(model string) float64 {
	p, ok := pricePerMTok[model]
	if !ok {
		return 0
	}
	return (float64(u.InputTokens)*p[0] + float64(u.OutputTokens)*p[1]) / 1e6
}

// Meta returns the usage as response metadata.
func (u TokenUsage) Meta(model string) map[string]any {
	return map[string]any{
		"input_tokens":       u.InputTokens,
		"output_tokens":      u.OutputTokens,
		"estimated_cost_usd": u.EstimateCost(model),
	}
}

// LogCost logs the usage of one call about subject at debug level.
func (u TokenUsage) LogCost(model, subject string) {
	zap.L().Debug("anthropic: usage",
		zap.String("model", model),
		zap.String("subject", subject),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}
