package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sitevisit/backend/cli/internal/api"
)

// Stdout is where all tables are written.
var Stdout io.Writer = os.Stdout

// JSON prints v as indented JSON.
func JSON(v interface{}) {
	enc := json.NewEncoder(Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func ProjectTable(projects []api.Project) {
	if len(projects) == 0 {
		fmt.Fprintln(Stdout, "No projects available.")
		return
	}
	w := tabwriter.NewWriter(Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLOCATION\tSTATUS")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Location, p.Status)
	}
	w.Flush()
}

// AppointmentTable lists appointments. The requester column is shown when
// any row carries one.
func AppointmentTable(appointments []api.Appointment) {
	if len(appointments) == 0 {
		fmt.Fprintln(Stdout, "No appointments found.")
		return
	}

	withUser := false
	for _, a := range appointments {
		if a.User != nil {
			withUser = true
			break
		}
	}

	w := tabwriter.NewWriter(Stdout, 0, 0, 2, ' ', 0)
	header := "ID\tPROJECT\tREASON\tWHEN\tSTATUS\tFILES"
	if withUser {
		header += "\tREQUESTED BY"
	}
	fmt.Fprintln(w, header)

	for _, a := range appointments {
		row := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%d",
			a.ID, projectName(a), Reason(a), FormatWhen(a.ProposedDateTime), a.Status, len(a.Files))
		if withUser {
			requester := "-"
			if a.User != nil {
				requester = a.User.FullName
			}
			row += "\t" + requester
		}
		fmt.Fprintln(w, row)
	}
	w.Flush()
}

func AppointmentDetail(a api.Appointment) {
	w := tabwriter.NewWriter(Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", a.ID)
	fmt.Fprintf(w, "Project:\t%s\n", projectName(a))
	fmt.Fprintf(w, "Reason:\t%s\n", Reason(a))
	fmt.Fprintf(w, "When:\t%s\n", FormatWhen(a.ProposedDateTime))
	fmt.Fprintf(w, "Status:\t%s\n", a.Status)
	fmt.Fprintf(w, "Description:\t%s\n", a.VisitDesc)
	if a.User != nil {
		fmt.Fprintf(w, "Requested by:\t%s (%s)\n", a.User.FullName, a.User.Email)
	}
	for _, f := range a.Files {
		fmt.Fprintf(w, "File:\t%s [%s] %s\n", f.OriginalName, f.FileType, f.ID)
	}
	w.Flush()
}

func UserInfo(u api.User) {
	w := tabwriter.NewWriter(Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", u.FullName)
	fmt.Fprintf(w, "Email:\t%s\n", u.Email)
	fmt.Fprintf(w, "Role:\t%s\n", u.Role)
	fmt.Fprintf(w, "Company:\t%s\n", u.CompanyName)
	fmt.Fprintf(w, "ID:\t%s\n", u.ID)
	if len(u.Projects) > 0 {
		names := make([]string, 0, len(u.Projects))
		for _, p := range u.Projects {
			names = append(names, p.Name)
		}
		fmt.Fprintf(w, "Projects:\t%s\n", strings.Join(names, ", "))
	}
	w.Flush()
}

func VersionInfo(cliVersion, apiVersion string, server *api.VersionInfo) {
	w := tabwriter.NewWriter(Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "CLI:\t%s (API %s)\n", cliVersion, apiVersion)
	if server != nil {
		fmt.Fprintf(w, "Server:\t%s %s (API %s)\n", server.Service, server.Version, server.APIVersion)
		fmt.Fprintf(w, "Timezone:\t%s\n", server.Timezone)
		fmt.Fprintf(w, "File fields:\t%s\n", strings.Join(server.FileFields, ", "))
		if server.Compatible(apiVersion) {
			fmt.Fprintf(w, "Compatible:\tyes\n")
		} else {
			fmt.Fprintf(w, "Compatible:\tno, upgrade the CLI or the server\n")
		}
	} else {
		fmt.Fprintf(w, "Server:\tunreachable\n")
	}
	w.Flush()
}

// Reason renders the visit reason, with the workshop detail when present.
func Reason(a api.Appointment) string {
	reason := strings.ToLower(a.VisitReason)
	if a.WorkshopDetail != nil && *a.WorkshopDetail != "" {
		reason += "/" + strings.ToLower(*a.WorkshopDetail)
	}
	return reason
}

// FormatWhen prints an instant in the dd/mm/yyyy HH:mm form the API accepts.
func FormatWhen(t time.Time) string {
	return t.Format("02/01/2006 15:04")
}

func projectName(a api.Appointment) string {
	if a.Project != nil {
		return a.Project.Name
	}
	return a.ProjectID
}
