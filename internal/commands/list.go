package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/wordflux/boardctl/internal/actions"
	"github.com/wordflux/boardctl/internal/appctx"
	"github.com/wordflux/boardctl/internal/dispatch"
	"github.com/wordflux/boardctl/internal/filter"
	"github.com/wordflux/boardctl/internal/output"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	var (
		mine    bool
		overdue bool
		blocked bool
		today   bool
	)

	cmd := &cobra.Command{
		Use:   "list [column]",
		Short: "List cards on the board",
		Long: `List cards, optionally restricted to one column or a shortcut filter.

The column argument accepts the same vocabulary as instructions: names,
synonyms like "doing" or "wip", ordinals like "2nd column", or a column id.`,
		Example: `  boardctl list
  boardctl list doing
  boardctl list --mine
  boardctl list --overdue`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			a := actions.Action{Type: actions.TypeListTasks}
			switch {
			case mine:
				a.Filter = "mine"
			case overdue:
				a.Filter = "overdue"
			case blocked:
				a.Filter = "blocked"
			case today:
				a.Filter = "today"
			}
			if len(args) == 1 {
				a.Column = args[0]
			}

			res, err := app.Dispatcher.Apply(cmd.Context(), a, dispatch.Options{})
			if err != nil {
				return err
			}
			return app.OK(res.Data, output.WithSummary(res.Label))
		},
	}

	cmd.Flags().BoolVar(&mine, "mine", false, "Only cards assigned to you")
	cmd.Flags().BoolVar(&overdue, "overdue", false, "Only cards past their due date")
	cmd.Flags().BoolVar(&blocked, "blocked", false, "Only cards labeled blocked or stuck")
	cmd.Flags().BoolVar(&today, "today", false, "Only cards due today")
	return cmd
}

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search card titles and descriptions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			res, err := app.Dispatcher.Invoke(cmd.Context(), dispatch.MethodFilterCards, map[string]any{
				"filter": filter.Spec{Text: strings.Join(args, " ")},
			}, dispatch.Options{})
			if err != nil {
				return err
			}
			return app.OK(res.Data, output.WithSummary(res.Label))
		},
	}
}
