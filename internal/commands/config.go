package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wordflux/boardctl/internal/appctx"
	"github.com/wordflux/boardctl/internal/config"
	"github.com/wordflux/boardctl/internal/output"
)

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show effective configuration",
		Long: `Show the effective configuration and where each value came from.

Configuration is loaded with the following precedence:
  flags > BOARDCTL_* env > config file > defaults

The default config file is ` + config.GlobalConfigPath() + `.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())
	cfg := app.Config

	entries := []struct {
		key     string
		value   any
		include bool
	}{
		{"base_url", cfg.BaseURL, cfg.BaseURL != ""},
		{"project_id", cfg.ProjectID, cfg.ProjectID != 0},
		{"me", cfg.Me, cfg.Me != ""},
		{"format", cfg.Format, cfg.Format != ""},
		{"undo_driver", cfg.UndoDriver, cfg.UndoDriver != ""},
		{"undo_path", cfg.UndoPath, cfg.UndoPath != ""},
		{"undo_max", cfg.UndoMax, true},
		{"backup_dir", cfg.BackupDir, cfg.BackupDir != ""},
		{"serve_addr", cfg.ServeAddr, cfg.ServeAddr != ""},
		{"rate_limit", cfg.RateLimit, true},
		{"rate_window_secs", cfg.RateWindowSecs, true},
		{"column_synonyms", cfg.ColumnSynonyms, len(cfg.ColumnSynonyms) > 0},
		{"verbose", cfg.Verbose, cfg.Verbose},
	}

	configData := make(map[string]any, len(entries))
	for _, e := range entries {
		if !e.include {
			continue
		}
		source := cfg.Sources[e.key]
		if source == "" {
			source = string(config.SourceDefault)
		}
		configData[e.key] = map[string]any{
			"value":  e.value,
			"source": source,
		}
	}
	// The serve token is deliberately not shown.

	summary := "Effective configuration"
	if cfg.Path != "" {
		summary = fmt.Sprintf("Effective configuration (file: %s)", cfg.Path)
	}
	return app.OK(configData, output.WithSummary(summary))
}
