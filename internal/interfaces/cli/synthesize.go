package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

func newSynthesizeCmd(deps Deps) *cobra.Command {
	var (
		batchID string
		profile string
	)

	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Run the synthesis pipeline for one batch",
		Long:  "Labels the batch snapshot, deduplicates, clusters across companies,\ngenerates candidates, validates the contract rules, and commits the result\natomically. A failed run persists only its failure record.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if batchID == "" {
				return errors.Validation("--batch is required")
			}

			resolved, err := deps.Profiles(insight.ProfileName(profile))
			if err != nil {
				return err
			}

			result, err := deps.Synthesis.Run(cmd.Context(), common.BatchID(batchID), resolved)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "batch %s completed: %d themes, %d alerts, %d duplicates, %d rejected\n",
				result.Batch.BatchID,
				result.Batch.Counts.ThemesEmitted,
				result.Batch.Counts.AlertsEmitted,
				result.Batch.Counts.DuplicatesRecorded,
				result.Batch.Counts.CandidatesRejected)
			return nil
		},
	}

	cmd.Flags().StringVar(&batchID, "batch", "", "batch identifier (required)")
	cmd.Flags().StringVar(&profile, "profile", "", "synthesis profile: quality-first or granular (default: configured)")
	return cmd
}
