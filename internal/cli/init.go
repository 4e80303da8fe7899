package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the ledger database",
		Long: `Create the SQLite ledger and apply the schema. Safe to run against an
existing database: nothing is dropped or rewritten.

Example:
  ballot init --db ./election.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			version, dirty, err := a.store.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			data := map[string]any{"db": rootOpts.DB, "schema_version": version, "dirty": dirty}
			return formatter(rootOpts, cmd).Success(data,
				fmt.Sprintf("✓ Ledger ready at %s (schema v%d)", rootOpts.DB, version))
		},
	}
}
