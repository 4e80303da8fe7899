package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ballot/internal/model"
)

// IdentityOptions holds flags for identity add and enroll.
type IdentityOptions struct {
	*RootOptions
	Slot  int
	Admin bool
}

// NewIdentityCommand creates the identity command group.
func NewIdentityCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage registered identities",
	}
	cmd.AddCommand(newIdentityAddCommand(rootOpts, false))
	cmd.AddCommand(newIdentityAddCommand(rootOpts, true))
	cmd.AddCommand(newIdentityRemoveCommand(rootOpts))
	cmd.AddCommand(newIdentityLookupCommand(rootOpts))
	cmd.AddCommand(newIdentityListCommand(rootOpts))
	return cmd
}

// newIdentityAddCommand builds "add" (bind an existing template slot) or
// "enroll" (capture the template first).
func newIdentityAddCommand(rootOpts *RootOptions, enroll bool) *cobra.Command {
	opts := &IdentityOptions{RootOptions: rootOpts}

	use, short := "add <name>", "Bind a template slot to a new identity"
	if enroll {
		use, short = "enroll <name>", "Capture a template and bind it to a new identity"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Example: `  ballot identity add "Alice" --slot 3
  ballot identity enroll "Admin" --slot 0 --admin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			p := model.PrivilegeOrdinary
			if opts.Admin {
				p = model.PrivilegeAdministrator
			}

			var ident model.Identity
			if enroll {
				ident, err = a.svc.Enroll(cmd.Context(), args[0], opts.Slot, p)
			} else {
				ident, err = a.svc.CreateIdentity(cmd.Context(), args[0], opts.Slot, p)
			}
			if err != nil {
				return err
			}
			return formatter(rootOpts, cmd).Success(ident,
				fmt.Sprintf("✓ Identity %d %q bound to slot %d (%s)", ident.ID, ident.Name, ident.Slot, ident.Privilege))
		},
	}

	cmd.Flags().IntVar(&opts.Slot, "slot", 0, "template slot (0..1000)")
	cmd.Flags().BoolVar(&opts.Admin, "admin", false, "grant administrator privilege")
	_ = cmd.MarkFlagRequired("slot")
	return cmd
}

func newIdentityRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	var unenroll bool

	cmd := &cobra.Command{
		Use:   "remove <slot>",
		Short: "Remove the identity bound to a slot",
		Long: `Remove the identity bound to a slot. Its vote, if any, stays in the
ledger and keeps counting. With --unenroll the template is deleted from the
reader first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if unenroll {
				err = a.svc.Unenroll(cmd.Context(), slot)
			} else {
				err = a.svc.RemoveIdentity(cmd.Context(), slot)
			}
			if err != nil {
				return err
			}
			return formatter(rootOpts, cmd).Success(map[string]int{"slot": slot},
				fmt.Sprintf("✓ Identity at slot %d removed", slot))
		},
	}

	cmd.Flags().BoolVar(&unenroll, "unenroll", false, "also delete the template from the reader")
	return cmd
}

func newIdentityLookupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <slot>",
		Short: "Show the identity bound to a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			ident, err := a.svc.Lookup(cmd.Context(), slot)
			if err != nil {
				return err
			}
			return formatter(rootOpts, cmd).Success(ident, formatIdentity(ident))
		},
	}
}

func newIdentityListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List identities ordered by slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			identities, err := a.svc.ListIdentities(cmd.Context())
			if err != nil {
				return err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Identities: %d", len(identities))
			for _, ident := range identities {
				b.WriteString("\n  " + formatIdentity(ident))
			}
			return formatter(rootOpts, cmd).Success(identities, b.String())
		},
	}
}

func formatIdentity(ident model.Identity) string {
	return fmt.Sprintf("[%d] slot %d %s (%s)", ident.ID, ident.Slot, ident.Name, ident.Privilege)
}

func parseSlot(s string) (int, error) {
	slot, err := strconv.Atoi(s)
	if err != nil {
		return 0, model.NewError(model.KindInvalidInput, "parse slot", fmt.Sprintf("slot %q is not an integer", s))
	}
	return slot, nil
}

func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, model.NewError(model.KindInvalidInput, "parse "+what, fmt.Sprintf("%s %q is not an integer", what, s))
	}
	return id, nil
}
