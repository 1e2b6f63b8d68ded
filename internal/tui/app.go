// Package tui is the interactive terminal board. It renders the board's
// grouping as columns and turns key presses into transition requests.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jonathan/hireops/internal/board"
	"github.com/jonathan/hireops/internal/event"
)

// App runs the terminal board.
type App struct {
	board           *board.Board
	refreshInterval time.Duration
	program         *tea.Program
}

// New creates an App. The board should already be loaded.
func New(b *board.Board, refreshInterval time.Duration) *App {
	return &App{board: b, refreshInterval: refreshInterval}
}

// Run starts the program and blocks until the user quits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.program = tea.NewProgram(
		NewModel(ctx, a.board, a.refreshInterval),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	// Bus handlers run on the publishing goroutine, which is the program's own
	// event loop when a move is submitted from Update. Send blocks until the
	// loop receives, so forward asynchronously.
	subID := a.board.Subscribe("*", func(e event.Event) {
		switch e.EventType() {
		case event.TypeBoardChanged, event.TypeBoardLoadFailed:
			go a.program.Send(boardEventMsg{event: e})
		}
	})
	defer a.board.Unsubscribe(subID)

	_, err := a.program.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
