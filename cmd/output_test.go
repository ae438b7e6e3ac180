package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/domain-runner/internal/model"
)

func TestPrintRanking(t *testing.T) {
	var buf bytes.Buffer
	err := printRanking(&buf, []model.BrandScore{
		{Subject: "acme.com", Rank: 1, Score: 7.3, CitationCount: 10, AvgDrift: 0, StabilityScore: 1},
		{Subject: "globex.com", Rank: 2, Score: 3.8, CitationCount: 5, AvgDrift: 0.2, StabilityScore: 0.8},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "acme.com")
	assert.Contains(t, out, "7.30")
	assert.Contains(t, out, "0.800")
}

func TestPrintBatches(t *testing.T) {
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	done := started.Add(90 * time.Second)

	var buf bytes.Buffer
	err := printBatches(&buf, []model.BatchRun{
		{ID: "b2", Status: model.BatchRunning, StartedAt: started},
		{ID: "b1", Status: model.BatchCompleted, StartedAt: started, CompletedAt: &done, SubjectsProcessed: 3, TotalCalls: 9, Successes: 8, Failures: 1},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "b2")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "completed")
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "serve", "drift", "rank", "monitor", "subjects", "batches", "migrate"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
