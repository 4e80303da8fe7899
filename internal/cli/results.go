package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ballot/internal/model"
	"github.com/roach88/ballot/internal/store"
)

// NewTallyCommand creates the tally command.
func NewTallyCommand(rootOpts *RootOptions) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "tally",
		Short: "Show live results",
		Long: `Show the vote count per registrant, highest first. Votes for removed
registrants are reported as orphaned. With --verify the tally is checked
against the number of committed votes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if verify {
				if err := a.svc.VerifyTally(cmd.Context()); err != nil {
					return err
				}
			}
			tally, err := a.svc.Tally(cmd.Context())
			if err != nil {
				return err
			}
			if tally.Rows == nil {
				tally.Rows = []model.TallyRow{}
			}
			return formatter(rootOpts, cmd).Success(tally, formatTally(tally))
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "reconcile the tally with the committed votes")
	return cmd
}

func formatTally(t model.Tally) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Results (%d votes)", t.Total())
	for _, row := range t.Rows {
		fmt.Fprintf(&b, "\n  %-24s %d", row.Registrant, row.Votes)
	}
	if t.Orphaned > 0 {
		fmt.Fprintf(&b, "\n  %-24s %d", "(removed registrants)", t.Orphaned)
	}
	return b.String()
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export results as CSV",
		Long: `Write the tally as CSV with the header "Party,Votes", one row per
registrant in tally order. Writes to stdout unless --output is given.

Example:
  ballot export -o results.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			var buf bytes.Buffer
			if err := a.svc.ExportTally(cmd.Context(), &buf); err != nil {
				return err
			}

			if output == "" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0644); err != nil {
				return WrapExitError(ExitCommandError, "write export", err)
			}
			return formatter(rootOpts, cmd).Success(map[string]string{"output": output},
				fmt.Sprintf("✓ Results written to %s", output))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		event string
		after int64
		limit int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List the audit trail in commit order",
		Example: `  ballot audit
  ballot audit --event vote-cast --format json
  ballot audit --after 120 --limit 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := store.AuditFilter{Kind: model.EventKind(event), AfterID: after, Limit: limit}
			if f.Kind != "" && !f.Kind.Valid() {
				return model.NewError(model.KindInvalidInput, "audit", fmt.Sprintf("unknown event %q", event))
			}

			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			events, err := a.svc.Audit(cmd.Context(), f)
			if err != nil {
				return err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Audit events: %d", len(events))
			for _, ev := range events {
				fmt.Fprintf(&b, "\n  [%d] %s %s %s", ev.ID, ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.Kind, ev.Detail)
			}
			return formatter(rootOpts, cmd).Success(events, b.String())
		},
	}

	cmd.Flags().StringVar(&event, "event", "", "only events of this kind")
	cmd.Flags().Int64Var(&after, "after", 0, "only events with id greater than this")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of events (0 = all)")
	return cmd
}
