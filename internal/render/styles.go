package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jonathan/hireops/internal/pipeline"
	"github.com/jonathan/hireops/internal/types"
)

var (
	PrimaryColor = lipgloss.Color("#A78BFA")
	SuccessColor = lipgloss.Color("#10B981")
	WarningColor = lipgloss.Color("#F59E0B")
	ErrorColor   = lipgloss.Color("#F87171")
	MutedColor   = lipgloss.Color("#9CA3AF")
	TextColor    = lipgloss.Color("#F9FAFB")
	BorderColor  = lipgloss.Color("#6B7280")
	SurfaceColor = lipgloss.Color("#1F2937")

	// Stage accents, one per column of the full enumeration.
	StageColors = map[types.Status]lipgloss.Color{
		types.StatusApplied:            lipgloss.Color("#60A5FA"),
		types.StatusScreening:          lipgloss.Color("#FBBF24"),
		types.StatusInterviewScheduled: lipgloss.Color("#A78BFA"),
		types.StatusOfferExtended:      lipgloss.Color("#F472B6"),
		types.StatusHired:              lipgloss.Color("#10B981"),
		types.StatusRejected:           lipgloss.Color("#F87171"),
	}

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		MarginBottom(1)

	Muted   = lipgloss.NewStyle().Foreground(MutedColor)
	Success = lipgloss.NewStyle().Foreground(SuccessColor)
	Error   = lipgloss.NewStyle().Foreground(ErrorColor)

	Column = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 1)

	ColumnFocused = Column.
			BorderForeground(PrimaryColor)

	Card = lipgloss.NewStyle().
		MarginBottom(1)

	CardSelected = lipgloss.NewStyle().
			MarginBottom(1).
			Foreground(TextColor).
			Background(SurfaceColor)

	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	StatusBar = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(SurfaceColor).
			Padding(0, 1)
)

// StageHeader is the column header style in the stage's accent color.
func StageHeader(stage types.Status) lipgloss.Style {
	color, ok := StageColors[stage]
	if !ok {
		color = PrimaryColor
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color)
}

// PriorityStyle colors a priority badge.
func PriorityStyle(p pipeline.Priority) lipgloss.Style {
	switch p {
	case pipeline.PriorityHigh:
		return lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)
	case pipeline.PriorityMedium:
		return lipgloss.NewStyle().Foreground(WarningColor)
	default:
		return lipgloss.NewStyle().Foreground(SuccessColor)
	}
}
