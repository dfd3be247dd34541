package domain

import "context"

// QueryService is the remote analytics query service.
// Implemented by dune.Client.
type QueryService interface {
	CreateQuery(ctx context.Context, req CreateQueryRequest) (QueryID, error)
	UpdateQuery(ctx context.Context, id QueryID, sql string) error
	GetQuery(ctx context.Context, id QueryID) (*Query, error)
	RunQuery(ctx context.Context, id QueryID) (string, error)
	GetExecutionStatus(ctx context.Context, executionID string) (*ExecutionStatus, error)
	GetExecutionResults(ctx context.Context, executionID string) (*ExecutionResult, error)
}
