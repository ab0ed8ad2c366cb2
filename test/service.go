package test

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/celestiaorg/descgen/internal/types"
	"github.com/celestiaorg/descgen/pkg/api/v1/client"
	"github.com/celestiaorg/descgen/pkg/api/v1/routes"
)

// Error messages returned by the fake service
const (
	ErrMsgInvalidReqBody = "invalid request body"
	ErrMsgJobNotFound    = "job not found"
	ErrMsgUnavailable    = "generator overloaded"
)

// Script controls how a fake job advances. Every listing of the job items
// counts as one tick, so a job and its items always agree once it completes.
type Script struct {
	// Steps is the number of ticks until the job completes
	Steps int
	// CostAfter is the number of ticks until the cost estimate is available
	CostAfter int
	// CostPerItem is the estimated and realized cost of each item
	CostPerItem float64
	// TokensPerItem is the estimated token usage of each item
	TokensPerItem int64
	// FailItems lists item IDs that end in the failed state
	FailItems []string
}

// DefaultScript completes a job after three ticks with the estimate available
// from the second one
func DefaultScript() Script {
	return Script{
		Steps:         3,
		CostAfter:     2,
		CostPerItem:   0.02,
		TokensPerItem: 800,
	}
}

type fakeJob struct {
	job    types.Job
	items  []types.JobItem
	ticks  int
	reads  int
	script Script
}

// FakeService is an in-memory generation service implementing the job API
type FakeService struct {
	mu       sync.Mutex
	script   Script
	jobs     map[string]*fakeJob
	keys     map[string]string
	failGets int
	now      func() time.Time

	createCalls int
	cancelCalls int
	requestIDs  map[string]struct{}
}

var _ routes.JobHandlers = (*FakeService)(nil)

// NewFakeService creates an empty service using DefaultScript for new jobs
func NewFakeService() *FakeService {
	return &FakeService{
		script:     DefaultScript(),
		jobs:       make(map[string]*fakeJob),
		keys:       make(map[string]string),
		requestIDs: make(map[string]struct{}),
		now:        time.Now,
	}
}

// SetScript sets the script used for jobs created from now on
func (s *FakeService) SetScript(script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = script
}

// FailJobReads makes the next n job reads (job and items) answer 503
func (s *FakeService) FailJobReads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGets = n
}

// Seed stores a job as is, bypassing the create endpoint
func (s *FakeService) Seed(job types.Job, items ...types.JobItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now()
	}
	s.jobs[job.ID] = &fakeJob{job: job, items: items, script: Script{Steps: 0}}
}

// Job returns the stored job
func (s *FakeService) Job(id string) (types.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fj, ok := s.jobs[id]
	if !ok {
		return types.Job{}, false
	}
	return fj.job, true
}

// Reads returns how many times the job itself was fetched
func (s *FakeService) Reads(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fj, ok := s.jobs[id]; ok {
		return fj.reads
	}
	return 0
}

// CreateCalls returns the number of create requests received
func (s *FakeService) CreateCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCalls
}

// CancelCalls returns the number of cancel requests received
func (s *FakeService) CancelCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelCalls
}

// RequestIDs returns the number of distinct request IDs seen
func (s *FakeService) RequestIDs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requestIDs)
}

func (s *FakeService) trackRequest(c *fiber.Ctx) {
	if id := c.Get(client.HeaderRequestID); id != "" {
		s.requestIDs[id] = struct{}{}
	}
}

func jsonError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(types.ErrorResponse{Error: msg})
}

// CreateJob handles POST /api/jobs
func (s *FakeService) CreateJob(c *fiber.Ctx) error {
	var req types.GenerationRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrMsgInvalidReqBody)
	}
	if err := req.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackRequest(c)
	s.createCalls++

	key := c.Get(client.HeaderIdempotencyKey)
	if id, ok := s.keys[key]; ok && key != "" {
		return c.Status(fiber.StatusCreated).JSON(types.CreateJobResponse{JobID: id})
	}

	id := uuid.NewString()
	fj := &fakeJob{
		job: types.Job{
			ID:              id,
			Status:          types.JobStatusPending,
			CreatedAt:       s.now().UTC(),
			Style:           req.Style,
			Language:        req.Language,
			PublicationMode: req.PublicationMode,
		},
		script: s.script,
	}
	results := make([]types.JobItemResult, len(req.ItemIDs))
	for i, itemID := range req.ItemIDs {
		fj.items = append(fj.items, types.JobItem{ItemID: itemID, Status: types.JobItemStatusPending})
		results[i] = types.JobItemResult{ItemID: itemID, Success: true}
	}
	s.jobs[id] = fj
	if key != "" {
		s.keys[key] = id
	}

	return c.Status(fiber.StatusCreated).JSON(types.CreateJobResponse{
		JobID:   id,
		Results: results,
		Summary: &types.SubmitSummary{Total: len(results), Success: len(results)},
	})
}

// GetJob handles GET /api/jobs/:id
func (s *FakeService) GetJob(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackRequest(c)

	if s.failGets > 0 {
		s.failGets--
		return jsonError(c, fiber.StatusServiceUnavailable, ErrMsgUnavailable)
	}
	fj, ok := s.jobs[c.Params("id")]
	if !ok {
		return jsonError(c, fiber.StatusNotFound, ErrMsgJobNotFound)
	}

	fj.reads++
	return c.JSON(fj.job)
}

// ListJobItems handles GET /api/jobs/:id/products and advances the job by one
// tick
func (s *FakeService) ListJobItems(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackRequest(c)

	if s.failGets > 0 {
		s.failGets--
		return jsonError(c, fiber.StatusServiceUnavailable, ErrMsgUnavailable)
	}
	fj, ok := s.jobs[c.Params("id")]
	if !ok {
		return jsonError(c, fiber.StatusNotFound, ErrMsgJobNotFound)
	}
	fj.advance()
	return c.JSON(types.JobItemsResponse{Data: fj.items})
}

// CancelJob handles POST /api/jobs/:id/cancel
func (s *FakeService) CancelJob(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackRequest(c)
	s.cancelCalls++

	fj, ok := s.jobs[c.Params("id")]
	if !ok {
		return jsonError(c, fiber.StatusNotFound, ErrMsgJobNotFound)
	}
	if fj.job.Status.IsTerminal() {
		return jsonError(c, fiber.StatusConflict, fmt.Sprintf("job is already %s", fj.job.Status))
	}
	fj.job.Status = types.JobStatusCancelled
	for i := range fj.items {
		if fj.items[i].Status != types.JobItemStatusCompleted {
			fj.items[i].Status = types.JobItemStatusFailed
		}
	}
	return c.JSON(fiber.Map{"success": true})
}

// ListJobs handles GET /api/jobs with status and date filters, newest first
func (s *FakeService) ListJobs(c *fiber.Ctx) error {
	page, limit := 1, 20
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return jsonError(c, fiber.StatusBadRequest, "invalid page")
		}
		page = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return jsonError(c, fiber.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	from, err := parseQueryDate(c.Query("dateFrom"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid dateFrom")
	}
	to, err := parseQueryDate(c.Query("dateTo"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid dateTo")
	}
	status := types.JobStatus(c.Query("status"))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackRequest(c)

	matched := make([]types.Job, 0, len(s.jobs))
	for _, fj := range s.jobs {
		job := fj.job
		if status != "" && job.Status != status {
			continue
		}
		day := job.CreatedAt.UTC().Truncate(24 * time.Hour)
		if from != nil && day.Before(*from) {
			continue
		}
		if to != nil && day.After(*to) {
			continue
		}
		matched = append(matched, job)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	totalPages := (total + limit - 1) / limit
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return c.JSON(types.PaginatedJobList{
		Data: matched[start:end],
		Meta: types.PaginationMeta{Total: total, Page: page, Limit: limit, TotalPages: totalPages},
	})
}

func parseQueryDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(types.DateLayout, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// advance moves a non-terminal job one tick along its script
func (fj *fakeJob) advance() {
	fj.ticks++
	if fj.job.Status.IsTerminal() || fj.script.Steps <= 0 {
		return
	}

	if fj.ticks >= fj.script.CostAfter && fj.job.TotalCostEstimate == nil {
		cost := fj.script.CostPerItem * float64(len(fj.items))
		tokens := fj.script.TokensPerItem * int64(len(fj.items))
		fj.job.TotalCostEstimate, fj.job.EstimatedTokensTotal = &cost, &tokens
	}

	fj.job.Status = types.JobStatusProcessing
	fj.job.Progress = 100 * fj.ticks / fj.script.Steps
	done := len(fj.items) * fj.ticks / fj.script.Steps
	for i := 0; i < done && i < len(fj.items); i++ {
		fj.completeItem(i)
	}

	if fj.ticks >= fj.script.Steps {
		fj.job.Progress = 100
		fj.job.Status = types.JobStatusCompleted
		for i := range fj.items {
			fj.completeItem(i)
		}
	}
}

func (fj *fakeJob) completeItem(i int) {
	item := &fj.items[i]
	if item.Status == types.JobItemStatusCompleted || item.Status == types.JobItemStatusFailed {
		return
	}
	for _, failed := range fj.script.FailItems {
		if failed == item.ItemID {
			item.Status = types.JobItemStatusFailed
			return
		}
	}
	cost := fj.script.CostPerItem
	item.Status = types.JobItemStatusCompleted
	item.Cost = &cost
	item.TokenUsage = &types.TokenUsage{Input: fj.script.TokensPerItem / 4, Output: fj.script.TokensPerItem * 3 / 4}
}
