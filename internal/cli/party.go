package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ballot/internal/model"
)

// NewPartyCommand creates the party command group for registrants.
func NewPartyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "party",
		Aliases: []string{"registrant"},
		Short:   "Manage the registrants on the ballot",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registrants ordered by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			regs, err := a.svc.ListRegistrants(cmd.Context())
			if err != nil {
				return err
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Registrants: %d", len(regs))
			for _, reg := range regs {
				fmt.Fprintf(&b, "\n  [%d] %s", reg.ID, reg.Name)
			}
			return formatter(rootOpts, cmd).Success(regs, b.String())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Add a registrant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			reg, err := a.svc.CreateRegistrant(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return formatter(rootOpts, cmd).Success(reg, fmt.Sprintf("✓ Registrant %d %q added", reg.ID, reg.Name))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a registrant; its votes follow it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("registrant id", args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			reg, err := a.svc.RenameRegistrant(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			return formatter(rootOpts, cmd).Success(reg, fmt.Sprintf("✓ Registrant %d renamed to %q", reg.ID, reg.Name))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a registrant",
		Long: `Remove a registrant. Votes already cast for it stay in the ledger and are
reported as orphaned in the tally.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("registrant id", args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.RemoveRegistrant(cmd.Context(), id); err != nil {
				return err
			}
			return formatter(rootOpts, cmd).Success(model.Registrant{ID: id}, fmt.Sprintf("✓ Registrant %d removed", id))
		},
	})

	return cmd
}
