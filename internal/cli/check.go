package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/flowtree/internal/engine"
)

// CheckResult is the JSON payload of check.
type CheckResult struct {
	Valid      bool               `json:"valid"`
	Violations []engine.Violation `json:"violations"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the tree invariants of the store",
		Long: `Check every message against the tree invariants: root marker, flow
id matching the second segment, unique identifiers and gapless sibling
numbering below each flow root.

Exit codes:
  0 - No violations
  1 - One or more violations
  2 - Command error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				violations, err := app.Engine.Verify(ctx)
				if err != nil {
					return out.Fail(err)
				}
				result := CheckResult{Valid: len(violations) == 0, Violations: violations}
				if err := out.Render(result, func(w io.Writer) {
					for _, v := range violations {
						fmt.Fprintf(w, "✗ %s\n", v)
					}
					if result.Valid {
						fmt.Fprintln(w, "✓ No invariant violations")
					}
				}); err != nil {
					return err
				}
				if !result.Valid {
					return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d invariant violation(s)", len(violations)), Reported: true}
				}
				return nil
			})
		},
	}
}
