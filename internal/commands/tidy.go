package commands

import (
	"github.com/spf13/cobra"

	"github.com/wordflux/boardctl/internal/appctx"
	"github.com/wordflux/boardctl/internal/dispatch"
	"github.com/wordflux/boardctl/internal/output"
)

// NewTidyCmd creates the tidy command.
func NewTidyCmd() *cobra.Command {
	var preview bool

	cmd := &cobra.Command{
		Use:   "tidy [column]",
		Short: "Clean up the board or one column",
		Long: `Tidy moves untitled cards to the intake column, normalizes card titles,
and flags duplicate titles within a stage with a "duplicate" label.

A JSON backup of the board is written before anything is changed, and each
individual change gets its own undo record. Use --preview to see the plan
without applying it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			method := dispatch.MethodTidyBoard
			params := map[string]any{"preview": preview}
			if len(args) == 1 {
				method = dispatch.MethodTidyColumn
				params["column"] = args[0]
			}

			res, err := app.Dispatcher.Invoke(cmd.Context(), method, params, dispatch.Options{})
			if err != nil {
				return err
			}
			return app.OK(res.Data, output.WithSummary(res.Label))
		},
	}

	cmd.Flags().BoolVar(&preview, "preview", false, "Show the tidy plan without applying it")
	return cmd
}
