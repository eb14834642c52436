package cmd

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/sitevisit/backend/cli/internal/api"
	"github.com/sitevisit/backend/cli/internal/config"
	"github.com/sitevisit/backend/cli/internal/output"
)

var (
	flagEmail    string
	flagPassword string
	flagCode     string
	flagRecovery bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with your email and password",
	Long: `Sign in and store the session token locally.

  sitevisit login --email you@example.com
  Prompts for the password when --password is omitted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return login("/auth/login")
	},
}

var adminLoginCmd = &cobra.Command{
	Use:   "admin-login",
	Short: "Sign in as an administrator",
	Long: `Sign in through the administrator endpoint. When two-factor
authentication is enabled the TOTP code is read from --code or prompted for.

  sitevisit admin-login --email admin@example.com --code 123456
  sitevisit admin-login --email admin@example.com --recovery --code abcd-1234`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return login("/auth/admin/login")
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, adminLoginCmd} {
		c.Flags().StringVar(&flagEmail, "email", "", "Account email")
		c.Flags().StringVar(&flagPassword, "password", "", "Account password (prompted when omitted)")
		rootCmd.AddCommand(c)
	}
	adminLoginCmd.Flags().StringVar(&flagCode, "code", "", "TOTP or recovery code")
	adminLoginCmd.Flags().BoolVar(&flagRecovery, "recovery", false, "Treat --code as a recovery code")
}

func login(endpoint string) error {
	var err error
	if flagEmail == "" {
		if flagEmail, err = prompt("Email: "); err != nil {
			return err
		}
	}
	if flagPassword == "" {
		if flagPassword, err = prompt("Password: "); err != nil {
			return err
		}
	}

	client := api.NewClient(cfg.ServerURL, "")
	var resp api.Response[api.LoginResult]
	if err := client.Post(endpoint, map[string]string{
		"email":    flagEmail,
		"password": flagPassword,
	}, &resp); err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return fmt.Errorf("login failed: %s", apiErr.Message)
		}
		return fmt.Errorf("logging in: %w", err)
	}

	result := resp.Data
	if result.MFARequired {
		if result, err = completeMFA(client, result.MFAToken); err != nil {
			return err
		}
	}
	if result.Token == "" || result.User == nil {
		return fmt.Errorf("server did not return a session")
	}

	cfg.Token = result.Token
	cfg.Email = result.User.Email
	cfg.Role = result.User.Role
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	if flagJSON {
		output.JSON(result.User)
		return nil
	}
	fmt.Fprintf(output.Stdout, "Logged in as %s (%s, %s)\n", result.User.FullName, result.User.Email, result.User.Role)
	return nil
}

func completeMFA(client *api.Client, mfaToken string) (api.LoginResult, error) {
	code := flagCode
	if code == "" {
		label := "Authenticator code: "
		if flagRecovery {
			label = "Recovery code: "
		}
		var err error
		if code, err = prompt(label); err != nil {
			return api.LoginResult{}, err
		}
	}

	endpoint := "/auth/mfa/verify"
	if flagRecovery {
		endpoint = "/auth/mfa/recovery"
	}

	var resp api.Response[api.LoginResult]
	if err := client.Post(endpoint, map[string]string{
		"mfaToken": mfaToken,
		"code":     code,
	}, &resp); err != nil {
		return api.LoginResult{}, fmt.Errorf("verifying second factor: %w", err)
	}
	return resp.Data, nil
}
