package main

import (
	"github.com/spf13/cobra"
)

var boardAll bool

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Print the pipeline board",
	Long: `Load jobs, candidates and applications and print them grouped by stage.
Hired and rejected applications are left off unless --all is given.`,
	Args: cobra.NoArgs,
	RunE: runBoard,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print application counts per stage",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	boardCmd.Flags().BoolVar(&boardAll, "all", false, "Show every status as a column")
	statsCmd.Flags().BoolVar(&boardAll, "all", false, "Count every status")
	rootCmd.AddCommand(boardCmd, statsCmd)
}

func runBoard(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	b, err := a.newBoard(cmd, boardAll)
	if err != nil {
		return err
	}
	a.printer(cmd).PrintBoard(b.Grouping(), b.Store())
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	b, err := a.newBoard(cmd, boardAll)
	if err != nil {
		return err
	}
	a.printer(cmd).PrintStats(b.Grouping())
	return nil
}
