// Package pipeline partitions applications into ordered stage buckets and
// derives the board's card and funnel metrics. Everything here is pure.
package pipeline

import (
	"github.com/jonathan/hireops/internal/types"
)

// Grouping is the stage to applications partition rendered by the board.
type Grouping struct {
	// Stages is the ordered stage list the grouping was built with.
	Stages []types.Status
	// Buckets holds, per stage, the applications in original collection order.
	Buckets map[types.Status][]types.Application
	// Excluded counts applications whose status is not in Stages. They are
	// not shown on the board.
	Excluded int
}

// Group partitions apps by status into stages. The partition is stable and
// nothing is re-sorted. Applications with a status outside stages are
// excluded from every bucket.
func Group(apps []types.Application, stages []types.Status) Grouping {
	g := Grouping{
		Stages:  append([]types.Status(nil), stages...),
		Buckets: make(map[types.Status][]types.Application, len(stages)),
	}
	for _, s := range stages {
		g.Buckets[s] = []types.Application{}
	}
	for _, app := range apps {
		bucket, ok := g.Buckets[app.Status]
		if !ok {
			g.Excluded++
			continue
		}
		g.Buckets[app.Status] = append(bucket, app.Clone())
	}
	return g
}

// Count returns the number of applications in stage.
func (g Grouping) Count(stage types.Status) int {
	return len(g.Buckets[stage])
}

// Total returns the number of applications shown across all stages.
func (g Grouping) Total() int {
	n := 0
	for _, s := range g.Stages {
		n += len(g.Buckets[s])
	}
	return n
}

// Stage returns the applications in stage.
func (g Grouping) Stage(stage types.Status) []types.Application {
	return g.Buckets[stage]
}

// Contains reports whether stage is one of the grouping's columns.
func (g Grouping) Contains(stage types.Status) bool {
	_, ok := g.Buckets[stage]
	return ok
}

// StageIndex returns the column position of stage, or -1.
func (g Grouping) StageIndex(stage types.Status) int {
	for i, s := range g.Stages {
		if s == stage {
			return i
		}
	}
	return -1
}

// Locate returns the column and row of an application id, or ok=false.
func (g Grouping) Locate(id int64) (col, row int, ok bool) {
	for c, s := range g.Stages {
		for r, app := range g.Buckets[s] {
			if app.ID == id {
				return c, r, true
			}
		}
	}
	return 0, 0, false
}
