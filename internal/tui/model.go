package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jonathan/hireops/internal/api"
	"github.com/jonathan/hireops/internal/board"
	"github.com/jonathan/hireops/internal/event"
	"github.com/jonathan/hireops/internal/pipeline"
	"github.com/jonathan/hireops/internal/render"
	"github.com/jonathan/hireops/internal/transition"
	"github.com/jonathan/hireops/internal/types"
)

// Messages

type tickMsg time.Time

type boardEventMsg struct {
	event event.Event
}

type transitionResultMsg struct {
	result transition.Result
}

type refreshDoneMsg struct {
	ran    bool
	err    error
	manual bool
}

// toast is the status line message.
type toast struct {
	text  string
	isErr bool
}

// Model is the bubbletea model of the terminal board.
type Model struct {
	ctx             context.Context
	board           *board.Board
	refreshInterval time.Duration
	now             func() time.Time

	grouping pipeline.Grouping
	version  uint64
	col      int
	row      int
	width    int
	height   int
	inFlight int
	toast    toast

	keys    keyMap
	help    help.Model
	spinner spinner.Model
}

// NewModel creates a model over b. A zero refreshInterval disables auto
// refresh.
func NewModel(ctx context.Context, b *board.Board, refreshInterval time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(render.PrimaryColor)

	m := Model{
		ctx:             ctx,
		board:           b,
		refreshInterval: refreshInterval,
		now:             time.Now,
		keys:            defaultKeyMap(),
		help:            help.New(),
		spinner:         s,
	}
	m.regroup()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.refreshInterval > 0 {
		cmds = append(cmds, tick(m.refreshInterval))
	}
	return tea.Batch(cmds...)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case transitionResultMsg:
		m.inFlight--
		res := msg.result
		switch {
		case res.NoOp:
			m.toast = toast{text: fmt.Sprintf("#%d is already in %s", res.ApplicationID, res.To.Label())}
		case res.OK():
			m.toast = toast{text: fmt.Sprintf("Moved #%d to %s", res.ApplicationID, res.To.Label())}
		default:
			m.toast = toast{text: fmt.Sprintf("Could not move #%d to %s: %s", res.ApplicationID, res.To.Label(), api.Reason(res.Err)), isErr: true}
		}
		m.regroup()
		return m, nil

	case boardEventMsg:
		switch e := msg.event.(type) {
		case event.BoardLoadFailedEvent:
			m.toast = toast{text: e.Reason, isErr: true}
		case event.BoardChangedEvent:
			if e.Version != m.version {
				m.regroup()
			}
		}
		return m, nil

	case refreshDoneMsg:
		if msg.err != nil {
			m.toast = toast{text: "Refresh failed: " + api.Reason(msg.err), isErr: true}
		} else if msg.ran {
			m.toast = toast{text: "Board refreshed"}
		} else if msg.manual {
			m.toast = toast{text: "Board changed during refresh, press r again"}
		}
		m.regroup()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refreshIfIdle(), tick(m.refreshInterval))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Left):
		m.selectColumn(m.col - 1)
	case key.Matches(msg, m.keys.Right):
		m.selectColumn(m.col + 1)
	case key.Matches(msg, m.keys.Up):
		m.selectRow(m.row - 1)
	case key.Matches(msg, m.keys.Down):
		m.selectRow(m.row + 1)
	case key.Matches(msg, m.keys.MoveLeft):
		return m.moveBy(-1)
	case key.Matches(msg, m.keys.MoveRight):
		return m.moveBy(1)
	case key.Matches(msg, m.keys.Jump):
		n := int(msg.String()[0] - '1')
		if n >= 0 && n < len(types.AllStatuses) {
			return m.moveTo(types.AllStatuses[n])
		}
	case key.Matches(msg, m.keys.Refresh):
		if n := m.board.Controller().InFlight(); n > 0 {
			m.toast = toast{text: fmt.Sprintf("%d move(s) pending, refresh skipped", n)}
			return m, nil
		}
		m.toast = toast{text: "Refreshing..."}
		return m, m.refresh()
	}
	return m, nil
}

func (m *Model) regroup() {
	m.grouping = m.board.Grouping()
	m.version = m.board.Version()
	m.selectColumn(m.col)
}

func (m *Model) selectColumn(col int) {
	if n := len(m.grouping.Stages); col >= n {
		col = n - 1
	}
	if col < 0 {
		col = 0
	}
	m.col = col
	m.selectRow(m.row)
}

func (m *Model) selectRow(row int) {
	n := len(m.cards())
	if row >= n {
		row = n - 1
	}
	if row < 0 {
		row = 0
	}
	m.row = row
}

func (m Model) cards() []types.Application {
	if m.col < 0 || m.col >= len(m.grouping.Stages) {
		return nil
	}
	return m.grouping.Stage(m.grouping.Stages[m.col])
}

// Selected returns the highlighted application, if any.
func (m Model) Selected() (types.Application, bool) {
	cards := m.cards()
	if m.row < 0 || m.row >= len(cards) {
		return types.Application{}, false
	}
	return cards[m.row], true
}

func (m Model) moveBy(delta int) (tea.Model, tea.Cmd) {
	target := m.col + delta
	if target < 0 || target >= len(m.grouping.Stages) {
		return m, nil
	}
	return m.moveTo(m.grouping.Stages[target])
}

// moveTo is the input adapter: it hands the selected card to the board's
// transition sink and waits for the result off the UI goroutine.
func (m Model) moveTo(target types.Status) (tea.Model, tea.Cmd) {
	app, ok := m.Selected()
	if !ok {
		return m, nil
	}
	results, err := m.board.OnTransitionRequested(m.ctx, app.ID, target)
	if err != nil {
		m.toast = toast{text: err.Error(), isErr: true}
		return m, nil
	}
	m.inFlight++
	m.toast = toast{text: fmt.Sprintf("Moving #%d to %s...", app.ID, target.Label())}
	m.regroup()
	return m, func() tea.Msg {
		return transitionResultMsg{result: <-results}
	}
}

func (m Model) refresh() tea.Cmd {
	b, ctx := m.board, m.ctx
	return func() tea.Msg {
		ran, err := b.RefreshIfIdle(ctx)
		return refreshDoneMsg{ran: ran, err: err, manual: true}
	}
}

func (m Model) refreshIfIdle() tea.Cmd {
	b, ctx := m.board, m.ctx
	return func() tea.Msg {
		ran, err := b.RefreshIfIdle(ctx)
		if !ran && err == nil {
			return nil
		}
		return refreshDoneMsg{ran: ran, err: err}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	now := m.now()
	names := m.board.Store()

	columns := make([]string, 0, len(m.grouping.Stages))
	for i, stage := range m.grouping.Stages {
		selected := -1
		if i == m.col {
			selected = m.row
		}
		columns = append(columns, render.StageColumn(m.grouping, stage, names, now, selected, i == m.col))
	}

	var sb strings.Builder
	sb.WriteString(render.Title.Render(fmt.Sprintf("HireOps Pipeline · %d applications", m.grouping.Total())))
	sb.WriteString("\n")
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, columns...))
	sb.WriteString("\n")
	sb.WriteString(m.statusLine())
	sb.WriteString("\n")
	sb.WriteString(render.HelpBar.Render(m.help.View(m.keys)))
	return sb.String()
}

func (m Model) statusLine() string {
	var parts []string
	if m.inFlight > 0 {
		parts = append(parts, m.spinner.View()+fmt.Sprintf(" %d pending", m.inFlight))
	}
	if m.toast.text != "" {
		style := render.Success
		if m.toast.isErr {
			style = render.Error
		}
		parts = append(parts, style.Render(m.toast.text))
	}
	if m.grouping.Excluded > 0 {
		parts = append(parts, render.Muted.Render(fmt.Sprintf("%d in other stages", m.grouping.Excluded)))
	}
	return render.StatusBar.Render(strings.Join(parts, "  "))
}
