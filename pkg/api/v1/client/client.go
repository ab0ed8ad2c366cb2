// Package client provides the API client for interacting with the generation service
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/celestiaorg/descgen/internal/types"
	"github.com/celestiaorg/descgen/pkg/api/v1/routes"
)

// DefaultTimeout is the default timeout for API requests
const DefaultTimeout = 30 * time.Second

// Header names set on outgoing requests
const (
	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// Client is the interface for API client
type Client interface {
	// Job Endpoints
	CreateJob(ctx context.Context, req types.GenerationRequest) (types.CreateJobResponse, error)
	GetJob(ctx context.Context, id string) (types.Job, error)
	ListJobItems(ctx context.Context, id string) ([]types.JobItem, error)
	CancelJob(ctx context.Context, id string) error
	ListJobs(ctx context.Context, opts *types.JobListOptions) (types.PaginatedJobList, error)
}

var _ Client = &APIClient{}

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the API
	BaseURL string

	// Timeout is the request timeout
	Timeout time.Duration
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: routes.DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// APIClient implements the Client interface
type APIClient struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a new API client with the given options
func NewClient(opts *Options) (Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	// Validate the base URL
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL: %q must include scheme and host", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &APIClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: timeout,
	}, nil
}

type idempotencyKey struct{}

// WithIdempotencyKey attaches an idempotency key to requests made with ctx
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

// IdempotencyKeyFrom returns the idempotency key attached to ctx, if any
func IdempotencyKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKey{}).(string)
	return key
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *APIClient) createAgent(ctx context.Context, method, endpoint string, body interface{}) (*fiber.Agent, error) {
	fullURL := c.baseURL + endpoint

	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	// Set timeout from context or client default
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	agent.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	agent.Set(HeaderRequestID, uuid.NewString())
	if key := IdempotencyKeyFrom(ctx); key != "" {
		agent.Set(HeaderIdempotencyKey, key)
	}

	if body != nil {
		agent.JSON(body)
	}

	return agent, nil
}

// doRequest sends the HTTP request and processes the response
func (c *APIClient) doRequest(ctx context.Context, agent *fiber.Agent, v interface{}) error {
	statusCode, body, errs := agent.Bytes()

	// A response that arrives after the caller gave up is not applied
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(errs) > 0 {
		return fmt.Errorf("error sending request: %w", errs[0])
	}

	if statusCode < 200 || statusCode >= 300 {
		return &fiber.Error{
			Code:    statusCode,
			Message: errorMessage(statusCode, body),
		}
	}

	if v != nil && len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}

	return nil
}

// errorMessage extracts the message of a JSON error body, falling back to the
// raw body and then to the status text
func errorMessage(statusCode int, body []byte) string {
	var errResp types.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Error != "" {
			return errResp.Error
		}
		if errResp.Message != "" {
			return errResp.Message
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return http.StatusText(statusCode)
}

// executeRequest creates an agent, sends the request, and processes the response
func (c *APIClient) executeRequest(ctx context.Context, method, endpoint string, body, response interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	agent, err := c.createAgent(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	return c.doRequest(ctx, agent, response)
}

// CreateJob submits a generation request
func (c *APIClient) CreateJob(ctx context.Context, req types.GenerationRequest) (types.CreateJobResponse, error) {
	var response types.CreateJobResponse
	if err := c.executeRequest(ctx, http.MethodPost, routes.CreateJobURL(), req, &response); err != nil {
		return types.CreateJobResponse{}, err
	}
	if response.JobID == "" {
		return types.CreateJobResponse{}, errors.New("create job response has no job id")
	}
	return response, nil
}

// GetJob retrieves a job by ID
func (c *APIClient) GetJob(ctx context.Context, id string) (types.Job, error) {
	var job types.Job
	if err := c.executeRequest(ctx, http.MethodGet, routes.GetJobURL(id), nil, &job); err != nil {
		return types.Job{}, err
	}
	if err := job.Validate(); err != nil {
		return types.Job{}, fmt.Errorf("job %s: %w", id, err)
	}
	return job, nil
}

// ListJobItems retrieves the items of a job
func (c *APIClient) ListJobItems(ctx context.Context, id string) ([]types.JobItem, error) {
	var response types.JobItemsResponse
	if err := c.executeRequest(ctx, http.MethodGet, routes.ListJobItemsURL(id), nil, &response); err != nil {
		return nil, err
	}
	if response.Data == nil {
		return []types.JobItem{}, nil
	}
	return response.Data, nil
}

// CancelJob requests cancellation of a job
func (c *APIClient) CancelJob(ctx context.Context, id string) error {
	return c.executeRequest(ctx, http.MethodPost, routes.CancelJobURL(id), struct{}{}, nil)
}

// ListJobs lists jobs with optional filtering and pagination
func (c *APIClient) ListJobs(ctx context.Context, opts *types.JobListOptions) (types.PaginatedJobList, error) {
	var response types.PaginatedJobList
	if err := c.executeRequest(ctx, http.MethodGet, routes.ListJobsURL(opts.Values()), nil, &response); err != nil {
		return types.PaginatedJobList{}, err
	}
	for i := range response.Data {
		if err := response.Data[i].Validate(); err != nil {
			return types.PaginatedJobList{}, fmt.Errorf("job %s: %w", response.Data[i].ID, err)
		}
	}
	if response.Data == nil {
		response.Data = []types.Job{}
	}
	return response, nil
}
