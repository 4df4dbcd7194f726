package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalweave/signalweave/internal/application/review"
	"github.com/signalweave/signalweave/internal/domain/theme"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

func newReviewCmd(deps Deps) *cobra.Command {
	var (
		decision string
		reviewer string
		note     string
	)

	cmd := &cobra.Command{
		Use:   "review <theme-id>",
		Short: "Apply a quality-review decision to a theme",
		Long:  "Moves a Pending theme to Approved, Rejected, or Featured. Rejections\nrequire a note. Decisions are terminal; there is no undo.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reviewer == "" {
				return errors.New(errors.ErrCodeReviewerRequired, "--reviewer is required")
			}

			th, err := deps.Review.ReviewTheme(cmd.Context(), review.Input{
				ThemeID:  common.ID(args[0]),
				Decision: insight.QualityDecision(decision),
				Reviewer: common.ReviewerID(reviewer),
				Note:     note,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "theme %s is now %s (reviewed by %s)\n",
				th.ID, th.QualityDecision, th.ReviewedBy)
			return nil
		},
	}

	cmd.Flags().StringVar(&decision, "decision", "", "Approved, Rejected, or Featured (required)")
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewer identity (required)")
	cmd.Flags().StringVar(&note, "note", "", "review note; required for rejections")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func newThemesCmd(deps Deps) *cobra.Command {
	var (
		batchID  string
		decision string
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "themes",
		Short: "List themes, optionally filtered by batch and decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := theme.ListFilter{
				BatchID:  common.BatchID(batchID),
				Decision: insight.QualityDecision(decision),
				Pagination: common.Pagination{
					Page:     page,
					PageSize: pageSize,
				},
			}
			if filter.Decision != "" && !filter.Decision.Valid() {
				return errors.Validation(fmt.Sprintf("unknown quality decision %q", decision))
			}

			themes, err := deps.Review.ListThemes(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(themes)
		},
	}

	cmd.Flags().StringVar(&batchID, "batch", "", "filter by batch identifier")
	cmd.Flags().StringVar(&decision, "decision", "", "filter by quality decision")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "page size")
	return cmd
}
