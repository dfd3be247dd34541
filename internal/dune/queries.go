package dune

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"dune-sync/internal/domain"
)

// CreateQuery creates a new remote query and returns its id.
func (c *Client) CreateQuery(ctx context.Context, req domain.CreateQueryRequest) (domain.QueryID, error) {
	var out queryIDResponse
	body := createQueryRequest{Name: req.Name, QuerySQL: req.SQL, IsPrivate: req.IsPrivate}
	if err := c.call(ctx, http.MethodPost, "/query", body, &out); err != nil {
		return 0, err
	}
	id := domain.QueryID(out.QueryID)
	if !id.Valid() {
		return 0, fmt.Errorf("create query %q: response carried no query_id", req.Name)
	}
	return id, nil
}

// UpdateQuery replaces the SQL of an existing remote query.
func (c *Client) UpdateQuery(ctx context.Context, id domain.QueryID, sql string) error {
	return c.call(ctx, http.MethodPatch, queryPath(id), updateQueryRequest{QuerySQL: sql}, nil)
}

// GetQuery fetches remote query metadata. A 404 is reported as a
// *domain.NotFoundError.
func (c *Client) GetQuery(ctx context.Context, id domain.QueryID) (*domain.Query, error) {
	var out queryResponse
	if err := c.call(ctx, http.MethodGet, queryPath(id), nil, &out); err != nil {
		if IsNotFound(err) {
			return nil, domain.ErrNotFound("query %s not found: %v", id, err)
		}
		return nil, err
	}
	return &domain.Query{
		ID:          domain.QueryID(out.QueryID),
		Name:        out.Name,
		Description: out.Description,
		SQL:         out.QuerySQL,
		IsPrivate:   out.IsPrivate,
		IsArchived:  out.IsArchived,
		Owner:       out.Owner,
	}, nil
}

// RunQuery submits an execution and returns its execution id.
func (c *Client) RunQuery(ctx context.Context, id domain.QueryID) (string, error) {
	var out executeResponse
	if err := c.call(ctx, http.MethodPost, queryPath(id)+"/execute", struct{}{}, &out); err != nil {
		return "", err
	}
	if out.ExecutionID == "" {
		return "", fmt.Errorf("execute query %s: response carried no execution_id", id)
	}
	return out.ExecutionID, nil
}

// GetExecutionStatus returns the current state of an execution.
func (c *Client) GetExecutionStatus(ctx context.Context, executionID string) (*domain.ExecutionStatus, error) {
	var out statusResponse
	if err := c.call(ctx, http.MethodGet, executionPath(executionID)+"/status", nil, &out); err != nil {
		return nil, err
	}
	status := &domain.ExecutionStatus{
		ExecutionID: executionID,
		QueryID:     domain.QueryID(out.QueryID),
		RawState:    out.State,
		State:       domain.ParseExecutionState(out.State),
	}
	if out.Error != nil {
		status.Error = out.Error.Message
	}
	return status, nil
}

// GetExecutionResults fetches the results of a finished execution.
func (c *Client) GetExecutionResults(ctx context.Context, executionID string) (*domain.ExecutionResult, error) {
	var out resultsResponse
	if err := c.call(ctx, http.MethodGet, executionPath(executionID)+"/results", nil, &out); err != nil {
		return nil, err
	}
	result := &domain.ExecutionResult{ExecutionID: executionID, RawState: out.State}
	if out.Result != nil {
		result.RowCount = len(out.Result.Rows)
		if result.RowCount == 0 {
			result.RowCount = out.Result.Metadata.RowCount
		}
	}
	return result, nil
}

func queryPath(id domain.QueryID) string {
	return "/query/" + id.String()
}

func executionPath(executionID string) string {
	return "/execution/" + url.PathEscape(executionID)
}
