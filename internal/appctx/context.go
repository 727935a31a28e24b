// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"os"

	"github.com/wordflux/boardctl/internal/auth"
	"github.com/wordflux/boardctl/internal/board"
	"github.com/wordflux/boardctl/internal/config"
	"github.com/wordflux/boardctl/internal/dispatch"
	"github.com/wordflux/boardctl/internal/output"
	"github.com/wordflux/boardctl/internal/provider"
	"github.com/wordflux/boardctl/internal/undo"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config     *config.Config
	Auth       *auth.Manager
	Provider   board.Provider
	Undo       undo.Store
	Dispatcher *dispatch.Dispatcher
	Output     *output.Writer

	// Flags holds the global flag values
	Flags GlobalFlags
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON    bool
	Quiet   bool
	MD      bool // Literal Markdown syntax output
	Styled  bool // Force ANSI styled output (even when piped)
	IDsOnly bool
	Count   bool
	Agent   bool

	// Context flags
	Config  string
	Project int64
	Me      string

	// Behavior flags
	Verbose bool
}

// NewApp creates a new App with the given configuration.
//
// With no base_url configured the app runs against an in-memory demo board,
// so every command works offline. A missing token is not an error here:
// provider requests without one fail with an auth error when they happen,
// which keeps auth login usable before any token exists.
func NewApp(cfg *config.Config) (*App, error) {
	authMgr := auth.NewManager(cfg.BaseURL, config.GlobalConfigDir())

	var prov board.Provider
	if cfg.BaseURL == "" {
		prov = provider.NewMemory(cfg.ProjectID, "Backlog", "Ready", "In Progress", "Review", "Done")
	} else {
		token, _ := authMgr.Token()
		client := provider.NewHTTPClient(cfg.BaseURL, token)
		client.SetVerbose(cfg.Verbose)
		prov = client
	}

	store, err := undo.Open(cfg.UndoDriver, cfg.UndoPath, cfg.UndoMax)
	if err != nil {
		return nil, err
	}

	dispatcher := dispatch.New(prov, store, cfg.ProjectID,
		dispatch.WithMe(cfg.Me),
		dispatch.WithBackupDir(cfg.BackupDir),
		dispatch.WithSynonyms(cfg.ColumnSynonyms),
	)

	// Determine output format from config (default to auto)
	format := output.FormatAuto
	switch cfg.Format {
	case "json":
		format = output.FormatJSON
	case "markdown", "md":
		format = output.FormatMarkdown
	case "quiet":
		format = output.FormatQuiet
	case "styled":
		format = output.FormatStyled
	}

	return &App{
		Config:     cfg,
		Auth:       authMgr,
		Provider:   prov,
		Undo:       store,
		Dispatcher: dispatcher,
		Output: output.New(output.Options{
			Format:  format,
			Writer:  os.Stdout,
			Verbose: cfg.Verbose,
		}),
	}, nil
}

// ApplyFlags applies global flag values to the app configuration.
func (a *App) ApplyFlags() {
	// Apply output format from flags (order matters: specific modes first)
	if a.Flags.Agent {
		// Agent mode = quiet JSON (data only, no envelope)
		a.setFormat(output.FormatQuiet)
	} else if a.Flags.IDsOnly {
		a.setFormat(output.FormatIDs)
	} else if a.Flags.Count {
		a.setFormat(output.FormatCount)
	} else if a.Flags.Quiet {
		a.setFormat(output.FormatQuiet)
	} else if a.Flags.JSON {
		a.setFormat(output.FormatJSON)
	} else if a.Flags.Styled {
		a.setFormat(output.FormatStyled)
	} else if a.Flags.MD {
		a.setFormat(output.FormatMarkdown)
	}
}

func (a *App) setFormat(format output.Format) {
	a.Output = output.New(output.Options{
		Format:  format,
		Writer:  os.Stdout,
		Verbose: a.Config != nil && a.Config.Verbose,
	})
}

// OK outputs a success response.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	return a.Output.OK(data, opts...)
}

// Err outputs an error response.
func (a *App) Err(err error) error {
	return a.Output.Err(err)
}

// Close releases app resources. Safe to call on a partially built app.
func (a *App) Close() error {
	if a.Undo != nil {
		return a.Undo.Close()
	}
	return nil
}

// IsInteractive returns true if the terminal supports interactive prompts.
func (a *App) IsInteractive() bool {
	// Not interactive if any non-interactive output mode is set
	if a.Flags.Agent || a.Flags.JSON || a.Flags.Quiet || a.Flags.IDsOnly || a.Flags.Count {
		return false
	}

	// Check if stdout is a terminal
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}

	return (fi.Mode() & os.ModeCharDevice) != 0
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
