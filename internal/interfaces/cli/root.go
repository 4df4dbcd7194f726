// Package cli implements the sweave command tree: operator-driven synthesis
// runs, theme review, schema migration, and the one-time legacy sentiment
// migration.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalweave/signalweave/internal/application/review"
	"github.com/signalweave/signalweave/internal/application/synthesis"
	"github.com/signalweave/signalweave/internal/domain/batch"
	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// Migrator applies pending schema migrations.
type Migrator interface {
	RunMigrations(migrationsDir string) error
}

// ProfileResolver returns the effective profile for a name; an empty name
// selects the deployment default.
type ProfileResolver func(name insight.ProfileName) (insight.SynthesisProfile, error)

// Deps carries the initialized services into the command tree.  main wires
// them after configuration and infrastructure startup.
type Deps struct {
	Synthesis synthesis.Service
	Review    review.Service
	Responses response.Repository
	Batches   batch.Repository
	Migrator  Migrator
	Profiles  ProfileResolver
	Logger    logging.Logger
}

// NewRootCommand builds the sweave root command.
func NewRootCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sweave",
		Short:         "SignalWeave Intelligence CLI",
		Long:          "SignalWeave synthesizes validated competitive-intelligence themes and\nstrategic alerts from B2B win/loss survey responses.",
		Version:       fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newSynthesizeCmd(deps))
	cmd.AddCommand(newReviewCmd(deps))
	cmd.AddCommand(newThemesCmd(deps))
	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newMigrateSentimentCmd(deps))

	return cmd
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
