package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/hireops/internal/types"
)

var (
	applyJobID       int64
	applyCandidateID int64
	applySource      string
	applyNotes       string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create an application for a candidate and job",
	Args:  cobra.NoArgs,
	RunE:  runApply,
}

func init() {
	applyCmd.Flags().Int64Var(&applyJobID, "job", 0, "Job ID (required)")
	applyCmd.Flags().Int64Var(&applyCandidateID, "candidate", 0, "Candidate ID (required)")
	applyCmd.Flags().StringVar(&applySource, "source", "", "Where the candidate came from")
	applyCmd.Flags().StringVar(&applyNotes, "notes", "", "Notes stored on the application")

	if err := applyCmd.MarkFlagRequired("job"); err != nil {
		panic(fmt.Sprintf("failed to mark job flag as required: %v", err))
	}
	if err := applyCmd.MarkFlagRequired("candidate"); err != nil {
		panic(fmt.Sprintf("failed to mark candidate flag as required: %v", err))
	}

	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	b, err := a.newBoard(cmd, false)
	if err != nil {
		return err
	}

	app, err := b.CreateApplication(cmd.Context(), types.CreateApplicationRequest{
		JobID:       applyJobID,
		CandidateID: applyCandidateID,
		Source:      applySource,
		Notes:       applyNotes,
	})
	if err != nil {
		if app == nil {
			return fmt.Errorf("failed to create application: %w", err)
		}
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created application #%d: %s for %s (%s)\n",
		app.ID, b.Store().CandidateName(*app), b.Store().JobTitle(*app), app.Status.Label())
	return nil
}
