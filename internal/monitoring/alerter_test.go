package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/domain-runner/internal/store"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(monitoringConfig())

	assert.Empty(t, a.Evaluate(&DriftSnapshot{AvgDrift: 0.1, Records: 50, LookbackHours: 24}))
	assert.Empty(t, a.Evaluate(&DriftSnapshot{AvgDrift: 0.9, Records: 0, LookbackHours: 24}))
}

func TestAlerter_Evaluate_HighDrift(t *testing.T) {
	a := NewAlerter(monitoringConfig())

	alerts := a.Evaluate(&DriftSnapshot{
		AvgDrift:      0.45,
		Records:       20,
		LookbackHours: 24,
		HighDrift: []store.SubjectDrift{
			{Subject: "acme.com", AvgDrift: 0.81, Records: 5},
			{Subject: "globex.com", AvgDrift: 0.62, Records: 3},
		},
	})
	require.Len(t, alerts, 3)
	assert.Equal(t, AlertHighDrift, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "0.450")
	assert.Equal(t, AlertSubjectDrift, alerts[1].Type)
	assert.Contains(t, alerts[1].Message, "acme.com has drift score 0.810")
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := monitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertHighDrift, Severity: "high", Message: "a"},
		{Type: AlertSubjectDrift, Severity: "medium", Message: "b"},
	})
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := monitoringConfig()
	cfg.WebhookURL = srv.URL
	sent := NewAlerter(cfg).SendAlerts(context.Background(), []Alert{{Type: AlertHighDrift}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	sent := NewAlerter(monitoringConfig()).SendAlerts(context.Background(), []Alert{{Type: AlertHighDrift}})
	assert.Equal(t, 0, sent)
}
