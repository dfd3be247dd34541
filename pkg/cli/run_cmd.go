package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dune-sync/internal/domain"
)

// runView is the JSON form of a single triggered run.
type runView struct {
	executionView
	ResultsURL string `json:"results_url,omitempty"`
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <query-id>",
		Short: "Trigger one query and poll until it finishes",
		Long: `Trigger an execution of one query and check its status until it finishes.
Results are not downloaded; a link to them is printed instead.

Exits with status 1 when the execution fails, stops in an unrecognised
state, or is still running when --timeout elapses.`,
		Example: "  dunesync run 5526654",
		Args:    queryIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseQueryID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}

			jsonOut := getOutputFormat(cmd) == "json"
			out := cmd.OutOrStdout()
			st := newStyles(out)
			onStatus := func(s *domain.ExecutionStatus) {
				if !jsonOut {
					_, _ = fmt.Fprintf(out, "Status: %s\n", s.RawState)
				}
			}

			if !jsonOut {
				_, _ = fmt.Fprintf(out, "Executing query %s...\n", id)
			}
			outcome, err := a.driver(svc).Trigger(cmd.Context(), id, onStatus)
			if err != nil {
				return fmt.Errorf("execute query %s: %w", id, err)
			}

			url := resultsURL(a.cfg.WebURL, id)
			var failure error
			switch outcome.Kind {
			case domain.OutcomeCompleted:
			case domain.OutcomeFailed:
				failure = fmt.Errorf("query %s failed: %s", id, outcome.Reason)
			case domain.OutcomeUnknown:
				failure = fmt.Errorf("query %s stopped in unrecognised state %q", id, outcome.RawState)
			case domain.OutcomeTimedOut:
				failure = fmt.Errorf("query %s timed out: %w", id, outcome.Err)
			default:
				failure = fmt.Errorf("check status of query %s: %s", id, outcome.Reason)
			}

			if jsonOut {
				view := runView{executionView: newExecutionView(outcome)}
				view.Rows = nil
				if failure == nil {
					view.ResultsURL = url
				}
				if err := printJSON(out, view); err != nil {
					return err
				}
				if failure != nil {
					return &reportedError{err: failure}
				}
				return nil
			}
			if failure != nil {
				return failure
			}
			_, _ = fmt.Fprintln(out, st.Success.Render("Query completed successfully!"))
			_, _ = fmt.Fprintln(out, "View results at:")
			_, _ = fmt.Fprintln(out, url)
			return nil
		},
	}
}

// queryIDArg requires exactly one positive integer argument. It runs before
// any configuration or network access.
func queryIDArg(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return usageErrorf("requires exactly one query id, got %d\nUsage: %s", len(args), cmd.UseLine())
	}
	if _, err := domain.ParseQueryID(args[0]); err != nil {
		return usageErrorf("%v\nUsage: %s", err, cmd.UseLine())
	}
	return nil
}
