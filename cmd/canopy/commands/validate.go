package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/canopy/pkg/evidence"
)

// ErrArtifactInvalid is returned when an artifact violates its schema.
var ErrArtifactInvalid = errors.New("artifact failed schema validation")

// ValidateCommand holds the flags for the validate command.
type ValidateCommand struct {
	kind     string
	colorize bool
	nocolor  bool
}

// NewValidateCommand creates and configures the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &ValidateCommand{}

	cobraCmd := &cobra.Command{
		Use:   "validate <artifact.json>",
		Short: "Validate an evidence artifact against its schema",
		Long: `Validate checks a summary, debug, or manifest artifact against its
embedded JSON schema. The kind is inferred from the file name and can
be forced with --kind.

Examples:
  canopy validate output/forest_loss_post_2020_summary.json
  canopy validate --kind debug mask_debug.json`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return cmd.Run(cobraCmd.OutOrStdout(), args[0])
		},
	}

	flags := cobraCmd.Flags()
	flags.StringVar(&cmd.kind, "kind", "", "artifact kind: summary, debug, or manifest")
	flags.BoolVar(&cmd.colorize, "color", false, "force colored output")
	flags.BoolVar(&cmd.nocolor, "no-color", false, "disable colored output")

	return cobraCmd
}

// Run executes the validate command.
func (c *ValidateCommand) Run(out io.Writer, path string) error {
	if c.nocolor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	} else if c.colorize {
		color.NoColor = false //nolint:reassign // intentional override of library global
	}

	kind := c.kind
	if kind == "" {
		kind = inferArtifactKind(path)
	}

	if kind == "" {
		kinds := evidence.ArtifactKinds()
		sort.Strings(kinds)

		return fmt.Errorf("cannot infer artifact kind from %q, pass --kind (%s)",
			filepath.Base(path), strings.Join(kinds, ", "))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse artifact %s: %w", path, err)
	}

	issues, err := evidence.Validate(kind, payload)
	if err != nil {
		return err
	}

	if len(issues) == 0 {
		color.New(color.FgGreen).Fprintf(out, "%s artifact is valid (%s)\n", kind, path)

		return nil
	}

	color.New(color.FgRed).Fprintf(out, "%s artifact validation failed (%s)\n", kind, path)
	fmt.Fprintf(out, "\nErrors:\n")

	for _, issue := range issues {
		color.New(color.FgRed).Fprintf(out, "  - %s: %s\n", issue.Field, issue.Description)
	}

	return fmt.Errorf("%w: %d issue(s)", ErrArtifactInvalid, len(issues))
}

// inferArtifactKind guesses the artifact kind from the file name.
func inferArtifactKind(path string) string {
	base := strings.ToLower(filepath.Base(path))

	switch {
	case strings.Contains(base, "summary"):
		return evidence.ArtifactSummary
	case strings.Contains(base, "debug"):
		return evidence.ArtifactDebug
	case strings.Contains(base, "manifest"):
		return evidence.ArtifactManifest
	default:
		return ""
	}
}
