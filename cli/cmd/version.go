package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sitevisit/backend/cli/internal/api"
	"github.com/sitevisit/backend/cli/internal/output"
)

// Version is the CLI version, injected at build time:
//
//	go build -ldflags "-X github.com/sitevisit/backend/cli/cmd.Version=1.2.3"
var Version = "dev"

// apiVersion is the server API this CLI is built against.
const apiVersion = "v1"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI and server version and whether they are compatible",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp api.Response[api.VersionInfo]
		serverErr := apiClient.Get("/version", nil, &resp)

		if flagJSON {
			type jsonOut struct {
				CLIVersion    string   `json:"cliVersion"`
				CLIAPIVersion string   `json:"cliApiVersion"`
				Service       string   `json:"service,omitempty"`
				ServerVersion string   `json:"serverVersion,omitempty"`
				APIVersion    string   `json:"apiVersion,omitempty"`
				Timezone      string   `json:"timezone,omitempty"`
				FileFields    []string `json:"fileFields,omitempty"`
				Compatible    *bool    `json:"compatible,omitempty"`
				ServerError   string   `json:"serverError,omitempty"`
			}
			out := jsonOut{CLIVersion: Version, CLIAPIVersion: apiVersion}
			if serverErr == nil {
				compatible := resp.Data.Compatible(apiVersion)
				out.Service = resp.Data.Service
				out.ServerVersion = resp.Data.Version
				out.APIVersion = resp.Data.APIVersion
				out.Timezone = resp.Data.Timezone
				out.FileFields = resp.Data.FileFields
				out.Compatible = &compatible
			} else {
				out.ServerError = serverErr.Error()
			}
			output.JSON(out)
			return nil
		}

		var serverInfo *api.VersionInfo
		if serverErr == nil {
			serverInfo = &resp.Data
		}
		output.VersionInfo(Version, apiVersion, serverInfo)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
