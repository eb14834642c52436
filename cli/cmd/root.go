package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sitevisit/backend/cli/internal/api"
	"github.com/sitevisit/backend/cli/internal/config"
	"github.com/sitevisit/backend/cli/internal/output"
)

var (
	flagJSON      bool
	flagServerURL string

	cfg       *config.Config
	apiClient *api.Client

	stdin io.Reader = os.Stdin
)

var rootCmd = &cobra.Command{
	Use:   "sitevisit",
	Short: "Site Visit CLI: book and manage construction site visits",
	Long: `Site Visit CLI lets you book site visits, follow their status and,
for administrators, confirm, reject, postpone or complete them.

Get started:
  sitevisit login --email you@example.com
  sitevisit projects ls
  sitevisit appointments book --project <id> --reason other --desc "..." --date 05/06/2025 --time 10:00`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if flagServerURL != "" {
			cfg.ServerURL = flagServerURL
		}
		apiClient = api.NewClient(cfg.ServerURL, cfg.Token)
		output.Stdout = cmd.OutOrStdout()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server", "", "Override server URL (default: from config or http://localhost:8080)")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func requireAuth() error {
	if cfg == nil || !cfg.HasToken() {
		return fmt.Errorf("not authenticated, run \"sitevisit login\" first")
	}
	return nil
}

func requireAdmin() error {
	if err := requireAuth(); err != nil {
		return err
	}
	if !cfg.IsAdmin() {
		return fmt.Errorf("this command needs an administrator session, run \"sitevisit admin-login\"")
	}
	return nil
}

// prompt reads one line from stdin after printing label.
func prompt(label string) (string, error) {
	fmt.Fprint(output.Stdout, label)
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), err)
	}
	return strings.TrimSpace(line), nil
}
