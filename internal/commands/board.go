package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wordflux/boardctl/internal/appctx"
	"github.com/wordflux/boardctl/internal/dispatch"
	"github.com/wordflux/boardctl/internal/filter"
	"github.com/wordflux/boardctl/internal/output"
)

// ColumnSummary is one row of the board status view.
type ColumnSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Cards int    `json:"cards"`
}

// BoardStatus is the board command's summary payload.
type BoardStatus struct {
	ProjectID int64           `json:"project_id"`
	Columns   []ColumnSummary `json:"columns"`
	Total     int             `json:"total"`
	Overdue   int             `json:"overdue"`
}

// NewBoardCmd creates the board command.
func NewBoardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Show a board summary",
		Long:  "Show per-column card counts and the number of overdue cards.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			state, err := app.Provider.GetBoardState(cmd.Context(), app.Config.ProjectID)
			if err != nil {
				return err
			}

			status := BoardStatus{ProjectID: state.ProjectID}
			for _, col := range state.Columns {
				status.Columns = append(status.Columns, ColumnSummary{
					ID:    col.ID,
					Name:  col.Name,
					Cards: len(col.Cards),
				})
				status.Total += len(col.Cards)
			}

			res, err := app.Dispatcher.Invoke(cmd.Context(), dispatch.MethodFilterCards, map[string]any{
				"filter": filter.Spec{Due: &filter.DateRange{Overdue: true}},
			}, dispatch.Options{})
			if err != nil {
				return err
			}
			if fr, ok := res.Data.(filter.Result); ok {
				status.Overdue = len(fr.Matches)
			}

			return app.OK(status, output.WithSummary(
				fmt.Sprintf("%d cards across %d columns, %d overdue",
					status.Total, len(status.Columns), status.Overdue)))
		},
	}
}
