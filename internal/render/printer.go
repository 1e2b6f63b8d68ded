// Package render writes pipeline boards and statistics to a terminal, either
// as lipgloss columns or as plain lines for pipes and scripts.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jonathan/hireops/internal/pipeline"
	"github.com/jonathan/hireops/internal/transition"
	"github.com/jonathan/hireops/internal/types"
)

const (
	// boxWidth is the width of boxed sections.
	boxWidth = 60
	// columnWidth is the inner width of one board column.
	columnWidth = 28
)

// Namer resolves display names for an application. *store.Store implements it.
type Namer interface {
	CandidateName(app types.Application) string
	JobTitle(app types.Application) string
}

// Printer writes board output.
type Printer struct {
	out   io.Writer
	plain bool
	now   func() time.Time
}

// NewPrinter creates a Printer. plain selects line-oriented output.
func NewPrinter(out io.Writer, plain bool) *Printer {
	return &Printer{out: out, plain: plain, now: time.Now}
}

// CardView is the display model of one application card.
type CardView struct {
	ID          int64
	Candidate   string
	Job         string
	Priority    pipeline.Priority
	TimeInStage string
}

// NewCardView builds the card for app.
func NewCardView(app types.Application, names Namer, now time.Time) CardView {
	return CardView{
		ID:          app.ID,
		Candidate:   names.CandidateName(app),
		Job:         names.JobTitle(app),
		Priority:    pipeline.PriorityOf(app, now),
		TimeInStage: pipeline.TimeInStage(app, now),
	}
}

// Lines renders the card as text lines no wider than width.
func (c CardView) Lines(width int) []string {
	return []string{
		truncate(fmt.Sprintf("#%d %s", c.ID, c.Candidate), width),
		truncate(c.Job, width),
		truncate(fmt.Sprintf("%s · %s", c.Priority, c.TimeInStage), width),
	}
}

// PrintBoard writes every stage of g with its cards.
//
//nolint:errcheck // terminal output; write errors are not recoverable
func (p *Printer) PrintBoard(g pipeline.Grouping, names Namer) {
	now := p.now()

	if p.plain {
		for _, stage := range g.Stages {
			fmt.Fprintf(p.out, "== %s (%d) ==\n", stage.Label(), g.Count(stage))
			for _, app := range g.Stage(stage) {
				card := NewCardView(app, names, now)
				fmt.Fprintf(p.out, "  #%d\t%s\t%s\t%s\t%s\n", card.ID, card.Candidate, card.Job, card.Priority, card.TimeInStage)
			}
		}
		if g.Excluded > 0 {
			fmt.Fprintf(p.out, "(%d applications in other stages not shown)\n", g.Excluded)
		}
		return
	}

	columns := make([]string, 0, len(g.Stages))
	for _, stage := range g.Stages {
		columns = append(columns, StageColumn(g, stage, names, now, -1, false))
	}
	fmt.Fprintln(p.out, lipgloss.JoinHorizontal(lipgloss.Top, columns...))
	if g.Excluded > 0 {
		fmt.Fprintln(p.out, Muted.Render(fmt.Sprintf("%d applications in other stages not shown", g.Excluded)))
	}
}

// StageColumn renders one stage as a bordered lipgloss column. selected is
// the highlighted row or -1.
func StageColumn(g pipeline.Grouping, stage types.Status, names Namer, now time.Time, selected int, focused bool) string {
	header := StageHeader(stage).Render(fmt.Sprintf("%s (%d)", stage.Label(), g.Count(stage)))

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n\n")
	apps := g.Stage(stage)
	if len(apps) == 0 {
		sb.WriteString(Muted.Render("No applications"))
	}
	for i, app := range apps {
		card := NewCardView(app, names, now)
		lines := card.Lines(columnWidth)
		lines[2] = PriorityStyle(card.Priority).Render(string(card.Priority)) + Muted.Render(" · "+card.TimeInStage)
		style := Card
		if i == selected {
			style = CardSelected
		}
		sb.WriteString(style.Width(columnWidth).Render(strings.Join(lines, "\n")))
		if i < len(apps)-1 {
			sb.WriteString("\n")
		}
	}

	col := Column
	if focused {
		col = ColumnFocused
	}
	return col.Width(columnWidth + 2).Render(sb.String())
}

// PrintStats writes the funnel and stage conversion rates.
//
//nolint:errcheck // terminal output; write errors are not recoverable
func (p *Printer) PrintStats(g pipeline.Grouping) {
	var sb strings.Builder
	for _, f := range pipeline.Funnel(g) {
		bar := strings.Repeat("█", int(f.Percent/5))
		sb.WriteString(fmt.Sprintf("%-20s %4d  %5.1f%%  %s\n", f.Stage.Label(), f.Count, f.Percent, bar))
	}
	sb.WriteString(fmt.Sprintf("%-20s %4d\n", "Total", g.Total()))
	if g.Excluded > 0 {
		sb.WriteString(fmt.Sprintf("%-20s %4d\n", "Not shown", g.Excluded))
	}
	p.printBox("Pipeline Health", strings.TrimRight(sb.String(), "\n"))

	rates := pipeline.ConversionRates(g)
	if len(rates) == 0 {
		return
	}
	sb.Reset()
	for _, r := range rates {
		sb.WriteString(fmt.Sprintf("%-40s %5.1f%%\n", r.Label(), r.Percent))
	}
	fmt.Fprintln(p.out)
	p.printBox("Conversion Rates", strings.TrimRight(sb.String(), "\n"))
}

// PrintResult writes the outcome of one transition.
//
//nolint:errcheck // terminal output; write errors are not recoverable
func (p *Printer) PrintResult(res transition.Result) {
	var line string
	switch {
	case res.NoOp:
		line = fmt.Sprintf("Application #%d is already in %s", res.ApplicationID, res.To.Label())
	case res.OK():
		line = fmt.Sprintf("Moved application #%d: %s → %s (%s)", res.ApplicationID, res.From.Label(), res.To.Label(),
			res.Duration.Round(time.Millisecond))
	default:
		line = fmt.Sprintf("Failed to move application #%d to %s; kept in %s: %v", res.ApplicationID, res.To.Label(),
			res.From.Label(), res.Err)
	}

	if p.plain {
		fmt.Fprintln(p.out, line)
		return
	}
	if res.OK() {
		fmt.Fprintln(p.out, Success.Render("✓ "+line))
	} else {
		fmt.Fprintln(p.out, Error.Render("✗ "+line))
	}
}

// PrintHistory writes an application's status history, oldest first.
//
//nolint:errcheck // terminal output; write errors are not recoverable
func (p *Printer) PrintHistory(id int64, entries []types.StatusHistoryEntry) {
	now := p.now()
	var sb strings.Builder
	if len(entries) == 0 {
		sb.WriteString("No status changes recorded")
	}
	for _, e := range entries {
		from := "—"
		if e.FromStatus != "" {
			from = e.FromStatus.Label()
		}
		sb.WriteString(fmt.Sprintf("%-12s %s → %s", pipeline.DaysAgo(e.ChangedAt, now), from, e.ToStatus.Label()))
		if e.Reason != "" {
			sb.WriteString(" (" + e.Reason + ")")
		}
		sb.WriteString("\n")
	}
	p.printBox(fmt.Sprintf("Application #%d history", id), strings.TrimRight(sb.String(), "\n"))
}

// printBox prints a formatted box with a title and content.
//
//nolint:errcheck // terminal output; write errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	if p.plain {
		fmt.Fprintf(p.out, "%s\n", title)
		fmt.Fprintf(p.out, "%s\n", content)
		return
	}

	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)
	for _, line := range strings.Split(content, "\n") {
		line = truncate(line, boxWidth-4)
		fmt.Fprintf(p.out, "│ %s%s │\n", line, strings.Repeat(" ", max(0, boxWidth-4-lipgloss.Width(line))))
	}
	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to width display cells, marking the cut with "...".
func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+3 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
