package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ballot/internal/manifest"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Manifest string
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create registrants and administrators from an election manifest",
		Long: `Load the CUE election manifest in --manifest and create every registrant
and administrator it declares that does not exist yet. Running seed again
changes nothing.

Example manifest (election.cue):

  election: {
    name: "Student council 2026"
    registrants: ["Red", "Blue"]
    administrators: [{name: "Admin", slot: 0}]
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "directory holding election.cue (required)")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	f := formatter(opts.RootOptions, cmd)

	election, err := manifest.Load(opts.Manifest)
	if err != nil {
		return WrapExitError(ExitCommandError, "load manifest", err)
	}
	f.VerboseLog("Loaded manifest %q: %d registrants, %d administrators",
		election.Name, len(election.Registrants), len(election.Administrators))

	a, err := openApp(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := manifest.Seed(cmd.Context(), a.svc, election)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✓ Seeded %d registrants (%d existing), %d administrators (%d existing)",
		len(res.CreatedRegistrants), len(res.ExistingRegistrants),
		len(res.CreatedAdministrators), len(res.ExistingAdministrators))
	for _, name := range res.CreatedRegistrants {
		b.WriteString("\n  + " + name)
	}
	return f.Success(res, b.String())
}
