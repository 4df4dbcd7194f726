package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
)

func newMigrateSentimentCmd(deps Deps) *cobra.Command {
	var (
		batchSize int
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "migrate-sentiment",
		Short: "Translate retired categorical sentiment labels to the numeric scale",
		Long:  "Finds responses that still carry a categorical label and no numeric\nsentiment, applies the legacy-v1 mapping, and persists them. Safe to re-run;\nalready-migrated responses are never selected again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			translator, err := response.NewLegacyTranslator(response.TranslatorV1)
			if err != nil {
				return err
			}

			var migrated, failed int
			for {
				pending, err := deps.Responses.ListUnmigratedLegacy(cmd.Context(), batchSize)
				if err != nil {
					return errors.Wrap(err, errors.ErrCodeDatabaseError, "listing unmigrated responses")
				}
				if len(pending) == 0 {
					break
				}

				persisted := 0
				for _, r := range pending {
					if err := r.ApplyLegacyLabel(translator, r.LegacyLabel); err != nil {
						// An unknown label is data corruption; log it and keep
						// going so one bad row cannot stall the migration.
						failed++
						deps.Logger.Error("legacy label translation failed",
							logging.String("response_id", string(r.ID)),
							logging.String("label", string(r.LegacyLabel)),
							logging.Err(err))
						continue
					}
					if dryRun {
						migrated++
						continue
					}
					if err := deps.Responses.Update(cmd.Context(), r); err != nil {
						return errors.Wrap(err, errors.ErrCodeDatabaseError, "persisting migrated response")
					}
					migrated++
					persisted++
				}

				// Rows that failed translation stay unmigrated; once a pass
				// persists nothing, another pass would fetch the same rows.
				if dryRun || persisted == 0 {
					break
				}
			}

			verb := "migrated"
			if dryRun {
				verb = "would migrate"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d responses, %d failed translation\n", verb, migrated, failed)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "rows fetched per round trip")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "translate without persisting")
	return cmd
}
