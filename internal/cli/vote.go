package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// VoteOptions holds flags for the vote command.
type VoteOptions struct {
	*RootOptions
	Slot     int
	Identity int64
	Party    int64
}

// NewResolveCommand creates the resolve command: a keypad probe.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	var slot int

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a presented slot to its identity",
		Long: `Present a slot on the keypad reader and resolve it to the bound identity,
the same way a kiosk resolves a finger.

Exit codes:
  0 - identity resolved
  1 - no identity bound to the slot`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			a.reader.Present(slot)
			ident, err := a.svc.Resolve(cmd.Context())
			if err != nil {
				return err
			}
			return formatter(rootOpts, cmd).Success(ident, formatIdentity(ident))
		},
	}

	cmd.Flags().IntVar(&slot, "slot", 0, "slot presented on the reader")
	_ = cmd.MarkFlagRequired("slot")
	return cmd
}

// NewVoteCommand creates the vote command.
func NewVoteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VoteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "vote",
		Short: "Cast the single vote of an identity",
		Long: `Cast a vote for a registrant. The voter is given either by slot or by
identity id. A second vote by the same identity is rejected.

Exit codes:
  0 - vote recorded
  1 - vote rejected (E201 already voted, E202 unknown registrant, E203 unknown identity)
  2 - command error

Examples:
  ballot vote --slot 3 --party 2
  ballot vote --identity 7 --party 2 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVote(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Slot, "slot", -1, "voter's template slot")
	cmd.Flags().Int64Var(&opts.Identity, "identity", 0, "voter's identity id")
	cmd.Flags().Int64Var(&opts.Party, "party", 0, "registrant id")
	cmd.MarkFlagsMutuallyExclusive("slot", "identity")
	cmd.MarkFlagsOneRequired("slot", "identity")
	_ = cmd.MarkFlagRequired("party")
	return cmd
}

func runVote(opts *VoteOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	identityID := opts.Identity
	if cmd.Flags().Changed("slot") {
		ident, err := a.svc.Lookup(ctx, opts.Slot)
		if err != nil {
			return err
		}
		identityID = ident.ID
	}

	vote, err := a.svc.CastVote(ctx, identityID, opts.Party)
	if err != nil {
		return err
	}
	return formatter(opts.RootOptions, cmd).Success(vote,
		fmt.Sprintf("✓ Vote %d recorded for registrant %d at %s", vote.ID, vote.RegistrantID,
			vote.VotedAt.Format(time.RFC3339)))
}
