// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"dune-sync/internal/domain"
)

// === Query Service Mock ===

// MockQueryService implements domain.QueryService for testing. Calls are
// recorded in order as "Method arg" strings.
type MockQueryService struct {
	CreateQueryFn         func(ctx context.Context, req domain.CreateQueryRequest) (domain.QueryID, error)
	UpdateQueryFn         func(ctx context.Context, id domain.QueryID, sql string) error
	GetQueryFn            func(ctx context.Context, id domain.QueryID) (*domain.Query, error)
	RunQueryFn            func(ctx context.Context, id domain.QueryID) (string, error)
	GetExecutionStatusFn  func(ctx context.Context, executionID string) (*domain.ExecutionStatus, error)
	GetExecutionResultsFn func(ctx context.Context, executionID string) (*domain.ExecutionResult, error)

	mu    sync.Mutex
	calls []string
}

// CreateQuery implements the interface method for testing.
func (m *MockQueryService) CreateQuery(ctx context.Context, req domain.CreateQueryRequest) (domain.QueryID, error) {
	m.record("CreateQuery %s", req.Name)
	if m.CreateQueryFn != nil {
		return m.CreateQueryFn(ctx, req)
	}
	panic("unexpected call to MockQueryService.CreateQuery")
}

// UpdateQuery implements the interface method for testing.
func (m *MockQueryService) UpdateQuery(ctx context.Context, id domain.QueryID, sql string) error {
	m.record("UpdateQuery %s", id)
	if m.UpdateQueryFn != nil {
		return m.UpdateQueryFn(ctx, id, sql)
	}
	panic("unexpected call to MockQueryService.UpdateQuery")
}

// GetQuery implements the interface method for testing.
func (m *MockQueryService) GetQuery(ctx context.Context, id domain.QueryID) (*domain.Query, error) {
	m.record("GetQuery %s", id)
	if m.GetQueryFn != nil {
		return m.GetQueryFn(ctx, id)
	}
	panic("unexpected call to MockQueryService.GetQuery")
}

// RunQuery implements the interface method for testing.
func (m *MockQueryService) RunQuery(ctx context.Context, id domain.QueryID) (string, error) {
	m.record("RunQuery %s", id)
	if m.RunQueryFn != nil {
		return m.RunQueryFn(ctx, id)
	}
	panic("unexpected call to MockQueryService.RunQuery")
}

// GetExecutionStatus implements the interface method for testing.
func (m *MockQueryService) GetExecutionStatus(ctx context.Context, executionID string) (*domain.ExecutionStatus, error) {
	m.record("GetExecutionStatus %s", executionID)
	if m.GetExecutionStatusFn != nil {
		return m.GetExecutionStatusFn(ctx, executionID)
	}
	panic("unexpected call to MockQueryService.GetExecutionStatus")
}

// GetExecutionResults implements the interface method for testing.
func (m *MockQueryService) GetExecutionResults(ctx context.Context, executionID string) (*domain.ExecutionResult, error) {
	m.record("GetExecutionResults %s", executionID)
	if m.GetExecutionResultsFn != nil {
		return m.GetExecutionResultsFn(ctx, executionID)
	}
	panic("unexpected call to MockQueryService.GetExecutionResults")
}

// Calls returns the recorded calls in order.
func (m *MockQueryService) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallCount returns how many times method was called.
func (m *MockQueryService) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == method || strings.HasPrefix(c, method+" ") {
			n++
		}
	}
	return n
}

func (m *MockQueryService) record(format string, arg interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf(format, arg))
}

var _ domain.QueryService = (*MockQueryService)(nil)

// === Status Sequence ===

// StatusSequence returns a GetExecutionStatusFn that replays raw states in
// order and repeats the last one once exhausted.
func StatusSequence(states ...string) func(ctx context.Context, executionID string) (*domain.ExecutionStatus, error) {
	var mu sync.Mutex
	i := 0
	return func(_ context.Context, executionID string) (*domain.ExecutionStatus, error) {
		mu.Lock()
		defer mu.Unlock()
		raw := states[len(states)-1]
		if i < len(states) {
			raw = states[i]
			i++
		}
		return &domain.ExecutionStatus{
			ExecutionID: executionID,
			RawState:    raw,
			State:       domain.ParseExecutionState(raw),
		}, nil
	}
}
