package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sitevisit/backend/cli/internal/api"
	"github.com/sitevisit/backend/cli/internal/output"
)

var (
	flagStatus  string
	flagAll     bool
	flagProject string
	flagReason  string
	flagDetail  string
	flagDesc    string
	flagDate    string
	flagTime    string
	flagFiles   []string
)

var appointmentsCmd = &cobra.Command{
	Use:     "appointments",
	Aliases: []string{"appt", "appointment"},
	Short:   "Book and manage site visit appointments",
}

var appointmentsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List your appointments (or every appointment with --all)",
	Long: `List appointments ordered by proposed date.

  sitevisit appointments ls
  sitevisit appointments ls --status pending
  sitevisit appointments ls --all            Administrators only`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/appointments"
		if flagAll {
			if err := requireAdmin(); err != nil {
				return err
			}
			path = "/appointments/admin"
		} else if err := requireAuth(); err != nil {
			return err
		}

		params := url.Values{}
		if flagStatus != "" {
			params.Set("status", flagStatus)
		}

		var resp api.Response[[]api.Appointment]
		if err := apiClient.Get(path, params, &resp); err != nil {
			return fmt.Errorf("listing appointments: %w", err)
		}

		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		output.AppointmentTable(resp.Data)
		return nil
	},
}

var appointmentsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one appointment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp api.Response[api.Appointment]
		if err := apiClient.Get("/appointments/"+url.PathEscape(args[0]), nil, &resp); err != nil {
			return fmt.Errorf("fetching appointment: %w", err)
		}

		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		output.AppointmentDetail(resp.Data)
		return nil
	},
}

var appointmentsBookCmd = &cobra.Command{
	Use:   "book",
	Short: "Request a site visit",
	Long: `Request a site visit for a project you are assigned to.

  sitevisit appointments book --project <id> --reason file --desc "Plan review" \
      --date 05/06/2025 --time 10:00 --file files=./plan.pdf

Contractors booking a workshop visit pass --detail and the files it needs:

  sitevisit appointments book --project <id> --reason workshop --detail soil \
      --desc "Soil check" --date 05/06/2025 --time 10:00 \
      --file sitePhotoTemporary=./site.jpg --file ownerInvitationTemporary=./invite.pdf`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		files, err := parseFileFlags(flagFiles)
		if err != nil {
			return err
		}

		fields := map[string]string{
			"projectId":   flagProject,
			"visitReason": flagReason,
			"visitDesc":   flagDesc,
			"date":        flagDate,
			"time":        flagTime,
		}
		if flagDetail != "" {
			fields["workshopDetail"] = flagDetail
		}

		var resp api.Response[api.Appointment]
		if err := apiClient.PostMultipart("/appointments", fields, files, &resp); err != nil {
			return fmt.Errorf("booking appointment: %w", err)
		}

		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		fmt.Fprintf(output.Stdout, "Requested visit %s for %s (%s)\n",
			resp.Data.ID, output.FormatWhen(resp.Data.ProposedDateTime), resp.Data.Status)
		return nil
	},
}

// parseFileFlags turns field=path pairs into form files.
func parseFileFlags(values []string) ([]api.FormFile, error) {
	files := make([]api.FormFile, 0, len(values))
	for _, v := range values {
		field, path, ok := strings.Cut(v, "=")
		if !ok || strings.TrimSpace(field) == "" || strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("invalid --file %q, expected field=path", v)
		}
		files = append(files, api.FormFile{Field: strings.TrimSpace(field), Path: strings.TrimSpace(path)})
	}
	return files, nil
}

func statusCommand(use, status, verb string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: verb + " an appointment (administrators)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAdmin(); err != nil {
				return err
			}

			var resp api.Response[api.Appointment]
			path := "/appointments/admin/" + url.PathEscape(args[0]) + "/status"
			if err := apiClient.Patch(path, map[string]string{"status": status}, &resp); err != nil {
				return fmt.Errorf("updating appointment: %w", err)
			}

			if flagJSON {
				output.JSON(resp.Data)
				return nil
			}
			fmt.Fprintf(output.Stdout, "Appointment %s is now %s\n", resp.Data.ID, resp.Data.Status)
			return nil
		},
	}
}

var appointmentsPostponeCmd = &cobra.Command{
	Use:   "postpone <id>",
	Short: "Move an appointment to a new date and time (administrators)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAdmin(); err != nil {
			return err
		}
		if flagDate == "" || flagTime == "" {
			return fmt.Errorf("--date and --time are required")
		}

		var resp api.Response[api.Appointment]
		path := "/appointments/admin/" + url.PathEscape(args[0]) + "/postpone"
		if err := apiClient.Patch(path, map[string]string{
			"newDate": flagDate,
			"newTime": flagTime,
		}, &resp); err != nil {
			return fmt.Errorf("postponing appointment: %w", err)
		}

		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		fmt.Fprintf(output.Stdout, "Appointment %s postponed to %s\n", resp.Data.ID, output.FormatWhen(resp.Data.ProposedDateTime))
		return nil
	},
}

var appointmentsURLCmd = &cobra.Command{
	Use:   "url <id> <file-id>",
	Short: "Print a temporary download link for an attachment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp api.Response[api.FileURL]
		path := "/appointments/" + url.PathEscape(args[0]) + "/files/" + url.PathEscape(args[1]) + "/url"
		if err := apiClient.Get(path, nil, &resp); err != nil {
			return fmt.Errorf("fetching download link: %w", err)
		}

		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		fmt.Fprintln(output.Stdout, resp.Data.URL)
		return nil
	},
}

func init() {
	appointmentsLsCmd.Flags().StringVar(&flagStatus, "status", "", "Filter by status (pending, confirmed, rejected, completed, postponed)")
	appointmentsLsCmd.Flags().BoolVar(&flagAll, "all", false, "List every appointment (administrators)")

	appointmentsBookCmd.Flags().StringVar(&flagProject, "project", "", "Project ID")
	appointmentsBookCmd.Flags().StringVar(&flagReason, "reason", "", "Visit reason: workshop, file or other")
	appointmentsBookCmd.Flags().StringVar(&flagDetail, "detail", "", "Workshop detail (reexecution, concreteTesting, concreteWorks, soil, notSpecified)")
	appointmentsBookCmd.Flags().StringVar(&flagDesc, "desc", "", "Visit description")
	appointmentsBookCmd.Flags().StringVar(&flagDate, "date", "", "Date as dd/mm/yyyy")
	appointmentsBookCmd.Flags().StringVar(&flagTime, "time", "", "Time as HH:mm")
	appointmentsBookCmd.Flags().StringArrayVar(&flagFiles, "file", nil, "Attachment as field=path, repeatable")
	for _, name := range []string{"project", "reason", "desc", "date", "time"} {
		_ = appointmentsBookCmd.MarkFlagRequired(name)
	}

	appointmentsPostponeCmd.Flags().StringVar(&flagDate, "date", "", "New date as dd/mm/yyyy")
	appointmentsPostponeCmd.Flags().StringVar(&flagTime, "time", "", "New time as HH:mm")

	appointmentsCmd.AddCommand(
		appointmentsLsCmd,
		appointmentsShowCmd,
		appointmentsBookCmd,
		statusCommand("confirm", "confirmed", "Confirm"),
		statusCommand("reject", "rejected", "Reject"),
		statusCommand("complete", "completed", "Complete"),
		appointmentsPostponeCmd,
		appointmentsURLCmd,
	)
	rootCmd.AddCommand(appointmentsCmd)
}
