package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"dune-sync/internal/domain"
	"dune-sync/internal/reconcile"
)

func newCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create Dune queries for new .sql files",
		Long: `Create a Dune query for every .sql file whose name carries no query id,
rename each file to embed the new id and append the ids to the manifest.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			report, err := a.reconciler(svc).CreateNew(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return printJSON(out, report)
			}
			st := newStyles(out)
			_, _ = fmt.Fprintln(out, "Looking for new SQL files to create as Dune queries...")
			printCreateReport(out, st, report, a.cfg.ManifestPath)
			if len(report.Created) > 0 {
				_, _ = fmt.Fprintln(out)
				_, _ = fmt.Fprintln(out, st.Title.Render("Next steps:"))
				_, _ = fmt.Fprintf(out, "  1. Review the renamed files and commit them together with %s\n", a.cfg.ManifestPath)
				_, _ = fmt.Fprintln(out, "  2. Run 'dunesync deploy --run-only' to execute the new queries")
			}
			return nil
		},
	}
}

func printCreateReport(w io.Writer, st styles, report *reconcile.CreateReport, manifestPath string) {
	for _, name := range report.Empty {
		_, _ = fmt.Fprintf(w, "%s %s\n", st.Muted.Render("Skipping empty file:"), name)
	}
	if report.Found == 0 {
		_, _ = fmt.Fprintln(w, st.Success.Render("No new SQL files found."))
		return
	}
	for i, id := range report.Created {
		_, _ = fmt.Fprintf(w, "%s query %s, renamed file to %s\n", st.Success.Render("Created"), id, report.Bound[i])
	}
	for _, name := range report.Failed {
		_, _ = fmt.Fprintf(w, "%s %s\n", st.Failure.Render("Failed to create query from"), name)
	}
	if len(report.Created) > 0 {
		_, _ = fmt.Fprintf(w, "Updated %s with new IDs: %s\n", manifestPath, formatIDs(report.Created))
	}
}

func formatIDs(ids []domain.QueryID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
