// Package mock provides a function-field implementation of client.Client for tests
package mock

import (
	"context"
	"sync"

	"github.com/celestiaorg/descgen/internal/types"
	"github.com/celestiaorg/descgen/pkg/api/v1/client"
)

// MockClient implements the Client interface for testing.
// It is safe for concurrent use, pollers call it from several goroutines.
type MockClient struct {
	// Function fields that can be set to mock behavior
	CreateJobFn    func(ctx context.Context, req types.GenerationRequest) (types.CreateJobResponse, error)
	GetJobFn       func(ctx context.Context, id string) (types.Job, error)
	ListJobItemsFn func(ctx context.Context, id string) ([]types.JobItem, error)
	CancelJobFn    func(ctx context.Context, id string) error
	ListJobsFn     func(ctx context.Context, opts *types.JobListOptions) (types.PaginatedJobList, error)

	mu sync.Mutex

	// Call tracking for verification
	CreateJobCalls []struct {
		Ctx context.Context
		Req types.GenerationRequest
	}
	GetJobCalls       []string
	ListJobItemsCalls []string
	CancelJobCalls    []string
	ListJobsCalls     []types.JobListOptions
}

// Ensure MockClient implements Client interface
var _ client.Client = (*MockClient)(nil)

// CreateJob mocks the CreateJob method
func (m *MockClient) CreateJob(ctx context.Context, req types.GenerationRequest) (types.CreateJobResponse, error) {
	m.mu.Lock()
	m.CreateJobCalls = append(m.CreateJobCalls, struct {
		Ctx context.Context
		Req types.GenerationRequest
	}{
		Ctx: ctx,
		Req: req,
	})
	fn := m.CreateJobFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	// Default mock implementation
	return types.CreateJobResponse{JobID: "job-1"}, nil
}

// GetJob mocks the GetJob method
func (m *MockClient) GetJob(ctx context.Context, id string) (types.Job, error) {
	m.mu.Lock()
	m.GetJobCalls = append(m.GetJobCalls, id)
	fn := m.GetJobFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, id)
	}

	// Default mock implementation
	return types.Job{ID: id, Status: types.JobStatusCompleted, Progress: 100}, nil
}

// ListJobItems mocks the ListJobItems method
func (m *MockClient) ListJobItems(ctx context.Context, id string) ([]types.JobItem, error) {
	m.mu.Lock()
	m.ListJobItemsCalls = append(m.ListJobItemsCalls, id)
	fn := m.ListJobItemsFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, id)
	}
	return []types.JobItem{}, nil
}

// CancelJob mocks the CancelJob method
func (m *MockClient) CancelJob(ctx context.Context, id string) error {
	m.mu.Lock()
	m.CancelJobCalls = append(m.CancelJobCalls, id)
	fn := m.CancelJobFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, id)
	}
	return nil
}

// ListJobs mocks the ListJobs method
func (m *MockClient) ListJobs(ctx context.Context, opts *types.JobListOptions) (types.PaginatedJobList, error) {
	m.mu.Lock()
	var recorded types.JobListOptions
	if opts != nil {
		recorded = *opts
	}
	m.ListJobsCalls = append(m.ListJobsCalls, recorded)
	fn := m.ListJobsFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, opts)
	}
	return types.PaginatedJobList{Data: []types.Job{}, Meta: types.PaginationMeta{Page: 1, Limit: 20}}, nil
}

// CallCounts returns the number of recorded calls per method
func (m *MockClient) CallCounts() (create, getJob, listItems, cancel, list int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.CreateJobCalls), len(m.GetJobCalls), len(m.ListJobItemsCalls), len(m.CancelJobCalls), len(m.ListJobsCalls)
}

// GetJobCount returns the number of GetJob calls so far
func (m *MockClient) GetJobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.GetJobCalls)
}

// GetJobCountFor returns the number of GetJob calls made for id
func (m *MockClient) GetJobCountFor(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, got := range m.GetJobCalls {
		if got == id {
			n++
		}
	}
	return n
}

// CancelJobCount returns the number of CancelJob calls so far
func (m *MockClient) CancelJobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.CancelJobCalls)
}
