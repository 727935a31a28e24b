package commands

import (
	"github.com/spf13/cobra"

	"github.com/wordflux/boardctl/internal/appctx"
	"github.com/wordflux/boardctl/internal/dispatch"
	"github.com/wordflux/boardctl/internal/output"
)

// NewUndoCmd creates the undo command.
func NewUndoCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "undo [token]",
		Short: "Undo the last mutation, or a specific one by token",
		Long: `Undo replays the stored inverse of a mutation.

Without arguments the most recent mutation is undone. With a token (printed
when the mutation was applied) that specific mutation is undone instead.
Undoing is not itself undoable.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			if list {
				return runUndoList(cmd)
			}

			method := dispatch.MethodUndoLast
			params := map[string]any{}
			if len(args) == 1 {
				method = dispatch.MethodUndo
				params["token"] = args[0]
			}

			res, err := app.Dispatcher.Invoke(cmd.Context(), method, params, dispatch.Options{})
			if err != nil {
				return err
			}
			return app.OK(res.Data, output.WithSummary(res.Label))
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List pending undo records without replaying any")
	return cmd
}

func runUndoList(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())

	records, err := app.Undo.List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return app.OK([]any{}, output.WithSummary("Nothing to undo"))
	}
	return app.OK(records, output.WithSummary("Pending undo records, newest first"))
}
