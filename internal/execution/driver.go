// Package execution submits remote query runs and polls them to a terminal
// state. Everything is sequential: one submission or status check at a time.
package execution

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"dune-sync/internal/domain"
)

// DefaultPollInterval is the wait between status checks.
const DefaultPollInterval = 5 * time.Second

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// StatusFunc observes every status returned while polling.
type StatusFunc func(status *domain.ExecutionStatus)

// Options configures a Driver. Zero values select defaults.
type Options struct {
	PollInterval time.Duration
	// MaxWait bounds polling of a single execution. Zero waits indefinitely.
	MaxWait time.Duration
	Sleep   SleepFunc
	Now     func() time.Time
	Logger  *slog.Logger
}

// Driver runs queries through a domain.QueryService.
type Driver struct {
	svc      domain.QueryService
	interval time.Duration
	maxWait  time.Duration
	sleep    SleepFunc
	now      func() time.Time
	logger   *slog.Logger
}

// NewDriver creates a Driver backed by svc.
func NewDriver(svc domain.QueryService, opts Options) *Driver {
	d := &Driver{
		svc:      svc,
		interval: opts.PollInterval,
		maxWait:  opts.MaxWait,
		sleep:    opts.Sleep,
		now:      opts.Now,
		logger:   opts.Logger,
	}
	if d.interval <= 0 {
		d.interval = DefaultPollInterval
	}
	if d.maxWait < 0 {
		d.maxWait = 0
	}
	if d.sleep == nil {
		d.sleep = sleepContext
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Run submits an execution for each valid id and returns the handles of the
// submissions that succeeded. A failure on one id is logged and skipped.
func (d *Driver) Run(ctx context.Context, ids []domain.QueryID) []domain.ExecutionHandle {
	handles := make([]domain.ExecutionHandle, 0, len(ids))
	for _, id := range ids {
		if !id.Valid() {
			continue
		}
		if err := ctx.Err(); err != nil {
			d.logger.Error("run aborted", "query_id", id, "error", err)
			break
		}

		q, err := d.svc.GetQuery(ctx, id)
		if err != nil {
			var notFound *domain.NotFoundError
			if errors.As(err, &notFound) {
				d.logger.Warn("remote query not found; skipping", "query_id", id)
				continue
			}
			d.logger.Error("failed to fetch query", "query_id", id, "error", err)
			continue
		}
		d.logger.Info("running query", "query_id", id, "name", q.Name)

		executionID, err := d.svc.RunQuery(ctx, id)
		if err != nil {
			d.logger.Error("failed to run query", "query_id", id, "error", err)
			continue
		}
		d.logger.Info("started execution", "query_id", id, "execution_id", executionID)
		handles = append(handles, domain.ExecutionHandle{QueryID: id, ExecutionID: executionID, Name: q.Name})
	}
	return handles
}

// Await reports on each handle in order. Without wait every handle is
// reported as submitted and no further calls are made. With wait, each
// execution is polled to a terminal state and completed executions have
// their results fetched for the row count.
func (d *Driver) Await(ctx context.Context, handles []domain.ExecutionHandle, wait bool) []domain.ExecutionOutcome {
	outcomes := make([]domain.ExecutionOutcome, 0, len(handles))
	for _, h := range handles {
		if !wait {
			outcomes = append(outcomes, domain.ExecutionOutcome{Handle: h, Kind: domain.OutcomeSubmitted})
			continue
		}
		outcomes = append(outcomes, d.await(ctx, h))
	}
	return outcomes
}

func (d *Driver) await(ctx context.Context, h domain.ExecutionHandle) domain.ExecutionOutcome {
	d.logger.Info("waiting for execution", "query_id", h.QueryID, "execution_id", h.ExecutionID, "name", h.Name)

	out := d.Poll(ctx, h, nil)
	if out.Kind != domain.OutcomeCompleted {
		return out
	}

	result, err := d.svc.GetExecutionResults(ctx, h.ExecutionID)
	if err != nil {
		d.logger.Error("failed to fetch results", "query_id", h.QueryID, "execution_id", h.ExecutionID, "error", err)
		out.Kind = domain.OutcomeError
		out.Err = err
		out.Reason = err.Error()
		return out
	}
	out.RowCount = result.RowCount
	d.logger.Info("query completed", "query_id", h.QueryID, "execution_id", h.ExecutionID, "rows", result.RowCount)
	return out
}

// Poll checks the status of one execution every poll interval until it
// reaches a terminal state, the max wait elapses, a status call fails or ctx
// is done. onStatus, when non-nil, sees every observed status.
func (d *Driver) Poll(ctx context.Context, h domain.ExecutionHandle, onStatus StatusFunc) (out domain.ExecutionOutcome) {
	out.Handle = h
	start := d.now()
	defer func() { out.Elapsed = d.now().Sub(start) }()

	for {
		out.Polls++
		status, err := d.svc.GetExecutionStatus(ctx, h.ExecutionID)
		if err != nil {
			d.logger.Error("failed to check execution status",
				"query_id", h.QueryID, "execution_id", h.ExecutionID, "error", err)
			out.Kind = domain.OutcomeError
			out.Err = err
			out.Reason = err.Error()
			return out
		}
		out.RawState = status.RawState
		if onStatus != nil {
			onStatus(status)
		}

		if status.State.IsTerminal() {
			switch status.State {
			case domain.ExecutionCompleted:
				out.Kind = domain.OutcomeCompleted
			case domain.ExecutionFailed:
				out.Kind = domain.OutcomeFailed
				out.Reason = status.Error
				if out.Reason == "" {
					out.Reason = status.RawState
				}
				d.logger.Error("execution failed",
					"query_id", h.QueryID, "execution_id", h.ExecutionID, "error", out.Reason)
			default:
				out.Kind = domain.OutcomeUnknown
				out.Reason = "unrecognised state " + status.RawState
				d.logger.Warn("stopping on unrecognised execution state",
					"query_id", h.QueryID, "execution_id", h.ExecutionID, "state", status.RawState)
			}
			return out
		}

		if d.maxWait > 0 && d.now().Sub(start) >= d.maxWait {
			out.Kind = domain.OutcomeTimedOut
			out.Err = domain.ErrTimeout("still %s after %s", status.RawState, d.maxWait)
			out.Reason = out.Err.Error()
			d.logger.Warn("gave up waiting for execution",
				"query_id", h.QueryID, "execution_id", h.ExecutionID, "state", status.RawState, "max_wait", d.maxWait)
			return out
		}

		if err := d.sleep(ctx, d.interval); err != nil {
			out.Kind = domain.OutcomeError
			out.Err = err
			out.Reason = err.Error()
			d.logger.Error("polling interrupted",
				"query_id", h.QueryID, "execution_id", h.ExecutionID, "error", err)
			return out
		}
	}
}

// Trigger submits one execution without fetching query metadata or results,
// then polls its status. The returned error is non-nil only when submission
// fails.
func (d *Driver) Trigger(ctx context.Context, id domain.QueryID, onStatus StatusFunc) (domain.ExecutionOutcome, error) {
	if !id.Valid() {
		return domain.ExecutionOutcome{}, domain.ErrValidation("invalid query id %d", int64(id))
	}
	executionID, err := d.svc.RunQuery(ctx, id)
	if err != nil {
		return domain.ExecutionOutcome{}, err
	}
	d.logger.Info("started execution", "query_id", id, "execution_id", executionID)
	return d.Poll(ctx, domain.ExecutionHandle{QueryID: id, ExecutionID: executionID}, onStatus), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
