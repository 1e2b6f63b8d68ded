package main

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/hireops/internal/transition"
	"github.com/jonathan/hireops/internal/types"
)

// maxConcurrentMoves bounds the number of status updates in flight at once.
const maxConcurrentMoves = 4

var (
	moveNotes  string
	moveReason string
)

var moveCmd = &cobra.Command{
	Use:   "move <status> <application-id>...",
	Short: "Move applications to another stage",
	Long: `Move one or more applications to a stage. Each move is applied to the
board first and rolled back if the server rejects it.

Status accepts canonical values (interview_scheduled) and the short aliases
"interview" and "offer".`,
	Example: `  hireops move screening 12
  hireops move interview 12 14 --reason "panel booked"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMove,
}

func init() {
	moveCmd.Flags().StringVar(&moveNotes, "notes", "", "Notes stored on the application")
	moveCmd.Flags().StringVar(&moveReason, "reason", "", "Reason recorded in the status history")
	rootCmd.AddCommand(moveCmd)
}

func runMove(cmd *cobra.Command, args []string) error {
	target, err := types.ParseStatus(args[0])
	if err != nil {
		return err
	}
	ids, err := parseIDs(args[1:])
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	b, err := a.newBoard(cmd, true)
	if err != nil {
		return err
	}

	var opts []transition.RequestOption
	if moveNotes != "" {
		opts = append(opts, transition.WithNotes(moveNotes))
	}
	if moveReason != "" {
		opts = append(opts, transition.WithReason(moveReason))
	}

	results := make([]transition.Result, len(ids))
	var (
		mu     sync.Mutex
		failed int
	)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(maxConcurrentMoves)
	for i, id := range ids {
		g.Go(func() error {
			res, err := b.Move(ctx, id, target, opts...)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			results[i] = res
			// A failed move never cancels the others.
			return nil
		})
	}
	_ = g.Wait()

	printer := a.printer(cmd)
	for _, res := range results {
		printer.PrintResult(res)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d moves failed", failed, len(ids))
	}
	return nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	seen := make(map[int64]bool, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid application id %q", arg)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
