package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wordflux/boardctl/internal/appctx"
	"github.com/wordflux/boardctl/internal/output"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the provider API token",
		Long: `Manage the API token used against the board provider.

Tokens are stored in the system keyring when one is available, with a
plaintext file fallback. The BOARDCTL_TOKEN environment variable overrides
any stored token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus(cmd)
		},
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthStatusCmd(),
		newAuthLogoutCmd(),
	)
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var tokenFlag string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API token",
		Long: `Store an API token for the configured provider.

Pass the token with --token, or pipe it on stdin:
  echo "$TOKEN" | boardctl auth login`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			token := tokenFlag
			if token == "" {
				var err error
				token, err = readTokenFromStdin(cmd)
				if err != nil {
					return err
				}
			}

			if err := app.Auth.Login(token); err != nil {
				return err
			}
			return app.OK(app.Auth.Status(), output.WithSummary("Logged in"))
		},
	}

	cmd.Flags().StringVar(&tokenFlag, "token", "", "API token (read from stdin when omitted)")
	return cmd
}

func readTokenFromStdin(cmd *cobra.Command) (string, error) {
	app := appctx.FromContext(cmd.Context())
	if app.IsInteractive() {
		fmt.Fprint(os.Stderr, "Token: ")
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", output.ErrUsage("No token given. Use --token or pipe it on stdin.")
	}
	return strings.TrimSpace(line), nil
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus(cmd)
		},
	}
}

func runAuthStatus(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())

	st := app.Auth.Status()
	summary := "Not logged in"
	if st.Authenticated {
		summary = "Logged in via " + st.Source
	}
	return app.OK(st, output.WithSummary(summary))
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			if err := app.Auth.Logout(); err != nil {
				return err
			}
			return app.OK(app.Auth.Status(), output.WithSummary("Logged out"))
		},
	}
}
