package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"dune-sync/internal/domain"
	"dune-sync/internal/reconcile"
)

// deployResult is the JSON form of a deploy run.
type deployResult struct {
	Create     *reconcile.CreateReport `json:"create,omitempty"`
	Update     *reconcile.UpdateReport `json:"update,omitempty"`
	Executions []executionView         `json:"executions,omitempty"`
	Summary    deploySummary           `json:"summary"`
}

type deploySummary struct {
	Created  int  `json:"created"`
	Updated  int  `json:"updated"`
	Executed *int `json:"executed,omitempty"`
}

// executionView is the JSON form of one execution outcome.
type executionView struct {
	QueryID     domain.QueryID     `json:"query_id"`
	ExecutionID string             `json:"execution_id"`
	Name        string             `json:"name,omitempty"`
	Outcome     domain.OutcomeKind `json:"outcome"`
	State       string             `json:"state,omitempty"`
	Rows        *int               `json:"rows,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Polls       int                `json:"polls,omitempty"`
	ElapsedMS   int64              `json:"elapsed_ms,omitempty"`
}

func newExecutionView(out domain.ExecutionOutcome) executionView {
	v := executionView{
		QueryID:     out.Handle.QueryID,
		ExecutionID: out.Handle.ExecutionID,
		Name:        out.Handle.Name,
		Outcome:     out.Kind,
		State:       out.RawState,
		Reason:      out.Reason,
		Polls:       out.Polls,
		ElapsedMS:   out.Elapsed.Milliseconds(),
	}
	if out.Kind == domain.OutcomeCompleted {
		rows := out.RowCount
		v.Rows = &rows
	}
	return v
}

func newDeployCmd(a *app) *cobra.Command {
	var (
		createOnly bool
		updateOnly bool
		runOnly    bool
		queryID    int64
		noWait     bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create new queries, update existing ones and run them",
		Long: `Deploy runs up to three steps in order:

  create  create Dune queries for new .sql files and record their ids
  update  push the SQL of every file listed in the manifest
  run     execute the manifest queries and wait for their results

--create-only, --update-only and --run-only restrict deploy to one step.`,
		Example: `  dunesync deploy
  dunesync deploy --create-only
  dunesync deploy --run-only --query-id 5526654 --no-wait`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			selected := 0
			for _, b := range []bool{createOnly, updateOnly, runOnly} {
				if b {
					selected++
				}
			}
			if selected > 1 {
				return usageErrorf("--create-only, --update-only and --run-only are mutually exclusive")
			}
			doCreate := !updateOnly && !runOnly
			doUpdate := !createOnly && !runOnly
			doRun := !createOnly && !updateOnly

			var runIDs []domain.QueryID
			if cmd.Flags().Changed("query-id") {
				if !doRun {
					return usageErrorf("--query-id only applies when queries are run")
				}
				id := domain.QueryID(queryID)
				if !id.Valid() {
					return usageErrorf("invalid --query-id %d: must be a positive integer", queryID)
				}
				runIDs = []domain.QueryID{id}
			}

			svc, err := a.service()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rec := a.reconciler(svc)

			jsonOut := getOutputFormat(cmd) == "json"
			out := cmd.OutOrStdout()
			if jsonOut {
				out = io.Discard
			}
			st := newStyles(out)
			result := deployResult{}

			_, _ = fmt.Fprintln(out, st.Title.Render("Dune Query Deployment and Execution"))
			_, _ = fmt.Fprintln(out, strings.Repeat("=", 50))

			if doCreate {
				_, _ = fmt.Fprintln(out, "Looking for new SQL files to create as Dune queries...")
				report, err := rec.CreateNew(ctx)
				if err != nil {
					return err
				}
				printCreateReport(out, st, report, a.cfg.ManifestPath)
				_, _ = fmt.Fprintln(out)
				result.Create = report
				result.Summary.Created = len(report.Created)
			}

			if doUpdate {
				_, _ = fmt.Fprintln(out, "Updating existing queries...")
				ids, err := rec.ManifestIDs()
				if err != nil {
					return err
				}
				report, err := rec.Update(ctx, ids)
				if err != nil {
					return err
				}
				printUpdateReport(out, st, report)
				_, _ = fmt.Fprintln(out)
				result.Update = report
				result.Summary.Updated = len(report.Updated)
			}

			if doRun {
				if runIDs == nil {
					if runIDs, err = rec.ManifestIDs(); err != nil {
						return err
					}
				}
				executed := 0
				if len(runIDs) == 0 {
					_, _ = fmt.Fprintln(out, st.Warning.Render("No queries to run"))
				} else {
					drv := a.driver(svc)
					_, _ = fmt.Fprintf(out, "Running %d queries...\n", len(runIDs))
					handles := drv.Run(ctx, runIDs)
					for _, h := range handles {
						_, _ = fmt.Fprintf(out, "Started execution %s for query %s: %s\n", h.ExecutionID, h.QueryID, h.Name)
					}
					if !noWait && len(handles) > 0 {
						_, _ = fmt.Fprintln(out, "\nWaiting for query results...")
					}
					outcomes := drv.Await(ctx, handles, !noWait)
					for _, o := range outcomes {
						printOutcome(out, st, o)
						result.Executions = append(result.Executions, newExecutionView(o))
					}
					executed = len(handles)
				}
				_, _ = fmt.Fprintln(out)
				result.Summary.Executed = &executed
			}

			_, _ = fmt.Fprintln(out, st.Title.Render("Summary:"))
			_, _ = fmt.Fprintf(out, "   Created: %d new queries\n", result.Summary.Created)
			_, _ = fmt.Fprintf(out, "   Updated: %d existing queries\n", result.Summary.Updated)
			if result.Summary.Executed != nil {
				_, _ = fmt.Fprintf(out, "   Executed: %d queries\n", *result.Summary.Executed)
			}
			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprintln(out, st.Success.Render("Deployment complete!"))

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), result)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&createOnly, "create-only", false, "Only create new queries, don't update or run")
	cmd.Flags().BoolVar(&updateOnly, "update-only", false, "Only update existing queries, don't create or run")
	cmd.Flags().BoolVar(&runOnly, "run-only", false, "Only run queries, don't create or update")
	cmd.Flags().Int64Var(&queryID, "query-id", 0, "Run this query id instead of the manifest")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Don't wait for query results")

	return cmd
}

func printUpdateReport(w io.Writer, st styles, report *reconcile.UpdateReport) {
	for _, id := range report.Missing {
		_, _ = fmt.Fprintf(w, "%s %s\n", st.Warning.Render("No local file found for query ID"), id)
	}
	for _, id := range report.Empty {
		_, _ = fmt.Fprintf(w, "%s %s\n", st.Warning.Render("Skipped empty file for query ID"), id)
	}
	for _, id := range report.Failed {
		_, _ = fmt.Fprintf(w, "%s %s\n", st.Failure.Render("Failed to update query"), id)
	}
	_, _ = fmt.Fprintf(w, "Updated %d existing queries\n", len(report.Updated))
}

func printOutcome(w io.Writer, st styles, o domain.ExecutionOutcome) {
	id := o.Handle.QueryID
	switch o.Kind {
	case domain.OutcomeSubmitted:
		return
	case domain.OutcomeCompleted:
		_, _ = fmt.Fprintf(w, "%s query %s completed successfully\n", st.Success.Render("Done:"), id)
		_, _ = fmt.Fprintf(w, "   Rows returned: %d\n", o.RowCount)
	case domain.OutcomeFailed:
		_, _ = fmt.Fprintf(w, "%s query %s: %s\n", st.Failure.Render("Failed:"), id, o.Reason)
	case domain.OutcomeUnknown:
		_, _ = fmt.Fprintf(w, "%s query %s stopped in state %s\n", st.Warning.Render("Unknown:"), id, o.RawState)
	case domain.OutcomeTimedOut:
		_, _ = fmt.Fprintf(w, "%s query %s: %s\n", st.Warning.Render("Timed out:"), id, o.Reason)
	default:
		_, _ = fmt.Fprintf(w, "%s query %s: %s\n", st.Failure.Render("Error:"), id, o.Reason)
	}
}
