package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/hireops/internal/types"
)

func apps(statuses ...types.Status) []types.Application {
	out := make([]types.Application, len(statuses))
	for i, s := range statuses {
		out[i] = types.Application{ID: int64(i + 1), Status: s}
	}
	return out
}

func ids(list []types.Application) []int64 {
	out := make([]int64, len(list))
	for i, a := range list {
		out[i] = a.ID
	}
	return out
}

func TestGroup_StablePartition(t *testing.T) {
	input := apps(
		types.StatusScreening, // 1
		types.StatusApplied,   // 2
		types.StatusScreening, // 3
		types.StatusApplied,   // 4
		types.StatusOfferExtended,
	)

	g := Group(input, types.KanbanStatuses)

	assert.Equal(t, []int64{2, 4}, ids(g.Stage(types.StatusApplied)))
	assert.Equal(t, []int64{1, 3}, ids(g.Stage(types.StatusScreening)))
	assert.Empty(t, g.Stage(types.StatusInterviewScheduled))
	assert.Equal(t, []int64{5}, ids(g.Stage(types.StatusOfferExtended)))
	assert.Equal(t, 2, g.Count(types.StatusApplied))
	assert.Equal(t, 5, g.Total())
	assert.Equal(t, 0, g.Excluded)
}

func TestGroup_EveryRecognizedApplicationInExactlyOneBucket(t *testing.T) {
	input := apps(types.AllStatuses...)
	input = append(input, apps(types.AllStatuses...)...)

	g := Group(input, types.AllStatuses)

	seen := map[int64]int{}
	for _, s := range g.Stages {
		for _, a := range g.Buckets[s] {
			assert.Equal(t, s, a.Status)
			seen[a.ID]++
		}
	}
	for _, s := range types.AllStatuses {
		want := 0
		for _, a := range input {
			if a.Status == s {
				want++
			}
		}
		assert.Equal(t, want, g.Count(s), "count for %s", s)
	}
	assert.Equal(t, len(input), g.Total())
}

func TestGroup_UnknownStatusesAreExcluded(t *testing.T) {
	input := []types.Application{
		{ID: 1, Status: types.StatusApplied},
		{ID: 2, Status: "withdrawn"},
		{ID: 3, Status: types.StatusRejected},
		{ID: 4, Status: ""},
	}

	g := Group(input, types.KanbanStatuses)

	for _, s := range g.Stages {
		for _, a := range g.Buckets[s] {
			assert.NotContains(t, []int64{2, 3, 4}, a.ID)
		}
	}
	assert.Equal(t, 1, g.Total())
	assert.Equal(t, 3, g.Excluded)
	assert.False(t, g.Contains(types.StatusRejected))
}

func TestGroup_IsPure(t *testing.T) {
	input := apps(types.StatusApplied, types.StatusHired, types.StatusApplied, types.StatusScreening)
	snapshot := append([]types.Application(nil), input...)

	first := Group(input, types.AllStatuses)
	second := Group(input, types.AllStatuses)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, input, "input must not be modified")

	first.Buckets[types.StatusApplied][0].Status = types.StatusRejected
	assert.Equal(t, types.StatusApplied, input[0].Status, "buckets must not alias the input")
}

func TestGroup_EmptyInput(t *testing.T) {
	g := Group(nil, types.KanbanStatuses)
	require.Len(t, g.Stages, len(types.KanbanStatuses))
	for _, s := range g.Stages {
		assert.NotNil(t, g.Buckets[s])
		assert.Zero(t, g.Count(s))
	}
	assert.Zero(t, g.Total())
}

func TestGrouping_LocateAndStageIndex(t *testing.T) {
	g := Group(apps(types.StatusApplied, types.StatusScreening, types.StatusScreening), types.KanbanStatuses)

	col, row, ok := g.Locate(3)
	require.True(t, ok)
	assert.Equal(t, 1, col)
	assert.Equal(t, 1, row)

	_, _, ok = g.Locate(99)
	assert.False(t, ok)

	assert.Equal(t, 2, g.StageIndex(types.StatusInterviewScheduled))
	assert.Equal(t, -1, g.StageIndex(types.StatusHired))
}

func TestPriorityAndTimeInStage(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		age      time.Duration
		priority Priority
		label    string
	}{
		{2 * time.Hour, PriorityLow, "Today"},
		{3 * day, PriorityLow, "3d ago"},
		{4 * day, PriorityMedium, "4d ago"},
		{7 * day, PriorityMedium, "7d ago"},
		{8 * day, PriorityHigh, "8d ago"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			app := types.Application{AppliedAt: now.Add(-tt.age)}
			assert.Equal(t, tt.priority, PriorityOf(app, now))
			assert.Equal(t, tt.label, TimeInStage(app, now))
		})
	}
}

func TestDaysAgo(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		age  time.Duration
		want string
	}{
		{time.Hour, "Today"},
		{day + time.Hour, "Yesterday"},
		{5 * day, "5 days ago"},
		{15 * day, "2 weeks ago"},
		{65 * day, "2 months ago"},
		{-2 * day, "2 days ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DaysAgo(now.Add(-tt.age), now))
	}
}

func TestFunnelAndConversionRates(t *testing.T) {
	input := apps(
		types.StatusApplied, types.StatusApplied, types.StatusApplied, types.StatusApplied,
		types.StatusScreening, types.StatusScreening,
		types.StatusInterviewScheduled,
	)
	g := Group(input, types.KanbanStatuses)

	funnel := Funnel(g)
	require.Len(t, funnel, 4)
	assert.Equal(t, FunnelStage{Stage: types.StatusApplied, Count: 4, Percent: 100}, funnel[0])
	assert.Equal(t, 50.0, funnel[1].Percent)
	assert.Equal(t, 25.0, funnel[2].Percent)
	assert.Equal(t, 0.0, funnel[3].Percent)

	rates := ConversionRates(g)
	require.Len(t, rates, 3)
	assert.Equal(t, "Applied to Screening", rates[0].Label())
	assert.Equal(t, 50.0, rates[0].Percent)
	assert.Equal(t, 50.0, rates[1].Percent)
	assert.Equal(t, 0.0, rates[2].Percent)

	assert.Nil(t, ConversionRates(Group(nil, []types.Status{types.StatusApplied})))
}
