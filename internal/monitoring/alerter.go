package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-runner/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertHighDrift    AlertType = "high_drift"
	AlertSubjectDrift AlertType = "subject_drift"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a DriftSnapshot against the alert threshold and sends
// alerts via webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against the threshold and returns any alerts.
func (a *Alerter) Evaluate(snap *DriftSnapshot) []Alert {
	if snap.Records == 0 || snap.AvgDrift <= a.cfg.AlertThreshold {
		return nil
	}
	now := time.Now().UTC()

	alerts := []Alert{{
		Type:     AlertHighDrift,
		Severity: "high",
		Message: fmt.Sprintf(
			"Average drift %.3f exceeds threshold %.3f (%d records in last %dh)",
			snap.AvgDrift, a.cfg.AlertThreshold, snap.Records, snap.LookbackHours,
		),
		Details: map[string]any{
			"avg_drift": snap.AvgDrift,
			"threshold": a.cfg.AlertThreshold,
			"records":   snap.Records,
		},
		Timestamp: now,
	}}

	for _, sd := range snap.HighDrift {
		alerts = append(alerts, Alert{
			Type:     AlertSubjectDrift,
			Severity: "medium",
			Message:  fmt.Sprintf("Domain %s has drift score %.3f", sd.Subject, sd.AvgDrift),
			Details: map[string]any{
				"domain":    sd.Subject,
				"avg_drift": sd.AvgDrift,
				"records":   sd.Records,
			},
			Timestamp: now,
		})
	}
	return alerts
}

// SendAlerts logs every alert and delivers it to the configured webhook URL.
// Returns the number of alerts successfully delivered.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	for _, alert := range alerts {
		zap.L().Warn("monitoring: drift alert",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
			zap.String("message", alert.Message),
		)
	}
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
