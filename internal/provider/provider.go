// Package provider adapts external text-generation services to one query
// contract.
package provider

import (
	"context"
	"time"

	"github.com/sells-group/domain-runner/internal/model"
)

// Adapter issues one outbound call per Query. Adapters never retry; the
// orchestrator owns the retry policy.
type Adapter interface {
	Config() model.ProviderConfig
	IsConfigured() bool
	Query(ctx context.Context, subject string, prompt model.Prompt) (*model.RawResponse, error)
}

const (
	defaultMaxTokens = 500
	userRole         = "user"
)

var zeroTemperature = 0.0

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
