package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/hireops/internal/config"
	"github.com/jonathan/hireops/internal/tui"
)

var watchAll bool

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"tui"},
	Short:   "Open the interactive pipeline board",
	Long: `Open a full-screen board. Select a card with the arrow keys and move it
with shift+left/right or the number keys. The board reloads periodically
while no move is pending.

Logs go to hireops.log in the config directory unless log.file is set.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchAll, "all", false, "Show every status as a column")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	// stderr belongs to the terminal UI.
	a, err := newAppWith(cmd, func(cfg *config.Config) {
		if cfg.Log.File == "" {
			cfg.Log.File = filepath.Join(config.Dir(), "hireops.log")
		}
	})
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := a.newBoard(cmd, watchAll)
	if err != nil {
		return err
	}
	return tui.New(b, a.cfg.Board.RefreshInterval).Run(ctx)
}
