// Package commands implements the boardctl subcommands.
package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wordflux/boardctl/internal/actions"
	"github.com/wordflux/boardctl/internal/appctx"
	"github.com/wordflux/boardctl/internal/columns"
	"github.com/wordflux/boardctl/internal/config"
	"github.com/wordflux/boardctl/internal/dispatch"
	"github.com/wordflux/boardctl/internal/output"
	"github.com/wordflux/boardctl/internal/parser"
)

// ActionResult pairs one interpreted action with its outcome.
type ActionResult struct {
	Action actions.Action `json:"action"`
	Data   any            `json:"data,omitempty"`
	Label  string         `json:"label,omitempty"`
	Undo   string         `json:"undo,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// NewDoCmd creates the do command, the natural-language entry point.
func NewDoCmd() *cobra.Command {
	var preview bool

	cmd := &cobra.Command{
		Use:   "do <instruction>",
		Short: "Interpret and apply a natural-language instruction",
		Long: `Interpret a chat-style instruction and apply it to the board.

Instructions cover creating, moving, updating, tagging, assigning and
commenting on cards, setting due dates and points, listing and searching,
tidying, and undo. English and Portuguese are understood. Prefix with
"preview:" (or pass --preview) to see the interpretation without applying.`,
		Example: `  boardctl do 'create "Fix login" in backlog urgent'
  boardctl do 'move #42 to done'
  boardctl do 'set due friday for #3 #4'
  boardctl do 'preview: tidy board'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDo(cmd, strings.Join(args, " "), preview)
		},
	}

	cmd.Flags().BoolVar(&preview, "preview", false, "Show the interpretation without applying it")
	return cmd
}

func runDo(cmd *cobra.Command, message string, preview bool) error {
	app := appctx.FromContext(cmd.Context())

	if preview && !strings.HasPrefix(strings.ToLower(strings.TrimSpace(message)), "preview:") {
		message = "preview: " + message
	}

	acts, err := interpretMessage(cmd.Context(), app, app.Config, message)
	if err != nil {
		return err
	}

	results := make([]ActionResult, 0, len(acts))
	applied := 0
	var firstErr error
	for _, a := range acts {
		res, err := app.Dispatcher.Apply(cmd.Context(), a, dispatch.Options{})
		item := ActionResult{Action: a}
		if err != nil {
			item.Error = err.Error()
			if firstErr == nil {
				firstErr = err
			}
		} else {
			item.Data = res.Data
			item.Label = res.Label
			if res.Undo != nil {
				item.Undo = res.Undo.Token
			}
			applied++
		}
		results = append(results, item)
	}

	// A single failed action surfaces as the command error so exit codes
	// stay meaningful; batches report per-action outcomes instead.
	if len(results) == 1 && firstErr != nil {
		return firstErr
	}

	summary := results[len(results)-1].Label
	if len(results) > 1 {
		summary = fmt.Sprintf("Applied %d of %d action(s)", applied, len(results))
	}
	return app.OK(results, output.WithSummary(summary))
}

// interpretMessage parses a message against the current board vocabulary.
func interpretMessage(ctx context.Context, app *appctx.App, cfg *config.Config, message string) ([]actions.Action, error) {
	state, err := app.Provider.GetBoardState(ctx, cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	resolver := columns.NewResolver(state.Columns)
	for phrase, columnID := range cfg.ColumnSynonyms {
		resolver.RegisterSynonym(phrase, columnID)
	}

	acts := parser.New(resolver).Parse(message)
	if len(acts) == 0 {
		return nil, output.ErrUsageHint(
			"Could not understand: "+message,
			`Try: create "Title" in backlog, move #42 to done, list in progress`)
	}
	return acts, nil
}
