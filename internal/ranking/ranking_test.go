package ranking

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/domain-runner/internal/model"
)

func TestRank_ExcludesUnobservedSubjects(t *testing.T) {
	aggs := []model.SubjectAggregate{
		{Subject: "a.com", Observations: 12, Citations: 10, AvgDrift: 0.1},
		{Subject: "b.com", Observations: 6, Citations: 5, AvgDrift: 0.1},
		{Subject: "c.com", Observations: 0, Citations: 0, AvgDrift: 0.5},
	}

	scores := Rank(aggs, 0)
	require.Len(t, scores, 2)
	assert.Equal(t, "a.com", scores[0].Subject)
	assert.Equal(t, 1, scores[0].Rank)
	assert.Equal(t, "b.com", scores[1].Subject)
	assert.Equal(t, 2, scores[1].Rank)
	assert.InDelta(t, 0.7*10+0.3*90, scores[0].Score, 1e-9)
	assert.InDelta(t, 90.0, scores[0].StabilityScore, 1e-9)
}

func TestRank_StableTieBreak(t *testing.T) {
	aggs := []model.SubjectAggregate{
		{Subject: "first.com", Observations: 1, Citations: 3, AvgDrift: 0.2},
		{Subject: "better.com", Observations: 1, Citations: 9, AvgDrift: 0.2},
		{Subject: "second.com", Observations: 1, Citations: 3, AvgDrift: 0.2},
	}

	scores := Rank(aggs, 0)
	require.Len(t, scores, 3)
	assert.Equal(t, []string{"better.com", "first.com", "second.com"},
		[]string{scores[0].Subject, scores[1].Subject, scores[2].Subject})
	assert.Equal(t, []int{1, 2, 3}, []int{scores[0].Rank, scores[1].Rank, scores[2].Rank})
}

func TestRank_StabilityOutweighsFewCitations(t *testing.T) {
	scores := Rank([]model.SubjectAggregate{
		{Subject: "noisy.com", Observations: 5, Citations: 5, AvgDrift: 0.9},
		{Subject: "steady.com", Observations: 4, Citations: 4, AvgDrift: 0.0},
	}, 0)
	require.Len(t, scores, 2)
	assert.Equal(t, "steady.com", scores[0].Subject)
}

func TestRank_LimitAppliesAfterSorting(t *testing.T) {
	scores := Rank([]model.SubjectAggregate{
		{Subject: "low.com", Observations: 1, Citations: 1},
		{Subject: "high.com", Observations: 1, Citations: 50},
		{Subject: "mid.com", Observations: 1, Citations: 20},
	}, 2)
	require.Len(t, scores, 2)
	assert.Equal(t, "high.com", scores[0].Subject)
	assert.Equal(t, "mid.com", scores[1].Subject)
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(nil, 10))
}

type stubSource struct {
	cohort string
	aggs   []model.SubjectAggregate
	err    error
}

func (s *stubSource) SubjectAggregates(_ context.Context, cohort string) ([]model.SubjectAggregate, error) {
	s.cohort = cohort
	return s.aggs, s.err
}

func TestEngine_Compute(t *testing.T) {
	src := &stubSource{aggs: []model.SubjectAggregate{
		{Subject: "a.com", Observations: 2, Citations: 2},
		{Subject: "b.com", Observations: 3, Citations: 3},
	}}
	e := NewEngine(src, 1)

	scores, err := e.Compute(context.Background(), "saas", 0)
	require.NoError(t, err)
	assert.Equal(t, "saas", src.cohort)
	require.Len(t, scores, 1)
	assert.Equal(t, "b.com", scores[0].Subject)
}

func TestEngine_Compute_SourceError(t *testing.T) {
	e := NewEngine(&stubSource{err: errors.New("db down")}, 10)

	_, err := e.Compute(context.Background(), "", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ranking: load aggregates")
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranking.xlsx")
	scores := Rank([]model.SubjectAggregate{
		{Subject: "a.com", Observations: 2, Citations: 10, AvgDrift: 0.1},
		{Subject: "b.com", Observations: 2, Citations: 5, AvgDrift: 0.2},
	}, 0)

	require.NoError(t, WriteXLSX(path, scores))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet[SheetName]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "domain", sheet.Rows[0].Cells[1].String())
	assert.Equal(t, "a.com", sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "b.com", sheet.Rows[2].Cells[1].String())
	rank, err := sheet.Rows[2].Cells[0].Int()
	require.NoError(t, err)
	assert.Equal(t, 2, rank)
}
