package pipeline

import (
	"fmt"
	"math"
	"time"

	"github.com/jonathan/hireops/internal/types"
)

// Priority is the urgency badge shown on a card.
type Priority string

// Priorities by time since the candidate applied.
const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

const day = 24 * time.Hour

// daysSince returns whole days between t and now, never negative.
func daysSince(t, now time.Time) int {
	d := now.Sub(t)
	if d < 0 {
		d = -d
	}
	return int(d / day)
}

// PriorityOf ranks an application: High after more than 7 days, Medium after
// more than 3.
func PriorityOf(app types.Application, now time.Time) Priority {
	days := daysSince(app.AppliedAt, now)
	switch {
	case days > 7:
		return PriorityHigh
	case days > 3:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// TimeInStage renders the card age as "Today" or "Nd ago".
func TimeInStage(app types.Application, now time.Time) string {
	days := daysSince(app.AppliedAt, now)
	if days == 0 {
		return "Today"
	}
	return fmt.Sprintf("%dd ago", days)
}

// DaysAgo renders a relative date for list views.
func DaysAgo(t, now time.Time) string {
	days := daysSince(t, now)
	switch {
	case days == 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		return fmt.Sprintf("%d weeks ago", days/7)
	default:
		return fmt.Sprintf("%d months ago", days/30)
	}
}

// FunnelStage is one bar of the pipeline health chart.
type FunnelStage struct {
	Stage   types.Status
	Count   int
	Percent float64 // relative to the first stage
}

// Funnel returns per-stage counts with their share of the first stage.
func Funnel(g Grouping) []FunnelStage {
	out := make([]FunnelStage, 0, len(g.Stages))
	base := 0
	if len(g.Stages) > 0 {
		base = g.Count(g.Stages[0])
	}
	for _, s := range g.Stages {
		out = append(out, FunnelStage{Stage: s, Count: g.Count(s), Percent: percent(g.Count(s), base)})
	}
	return out
}

// Conversion is the rate from one stage to the next.
type Conversion struct {
	From    types.Status
	To      types.Status
	Percent float64
}

// Label renders "Applied to Screening".
func (c Conversion) Label() string {
	return c.From.Label() + " to " + c.To.Label()
}

// ConversionRates returns next-stage / stage percentages for adjacent stages.
// A stage with no applications converts at 0%.
func ConversionRates(g Grouping) []Conversion {
	if len(g.Stages) < 2 {
		return nil
	}
	out := make([]Conversion, 0, len(g.Stages)-1)
	for i := 0; i+1 < len(g.Stages); i++ {
		from, to := g.Stages[i], g.Stages[i+1]
		out = append(out, Conversion{From: from, To: to, Percent: percent(g.Count(to), g.Count(from))})
	}
	return out
}

// percent returns n/base as a percentage rounded to one decimal.
func percent(n, base int) float64 {
	if base == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(base)*1000) / 10
}
