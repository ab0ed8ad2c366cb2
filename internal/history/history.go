// Package history lists past generation jobs page by page
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/celestiaorg/descgen/internal/logger"
	"github.com/celestiaorg/descgen/internal/types"
	"github.com/celestiaorg/descgen/pkg/api/v1/client"
)

// DefaultLimit is the page size used when none is given
const DefaultLimit = 20

// ErrSuperseded is returned by a fetch whose parameters were changed again
// before its response arrived. Its response is not applied.
var ErrSuperseded = errors.New("history fetch superseded by a newer query")

// Params selects one page of the job history
type Params struct {
	Page     int
	Limit    int
	Status   types.JobStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

func (p Params) normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	return p
}

// Validate checks the status filter and the date range
func (p Params) Validate() error {
	if p.Status != "" && !p.Status.IsValid() {
		return fmt.Errorf("invalid status filter: %q", p.Status)
	}
	if p.DateFrom != nil && p.DateTo != nil && p.DateFrom.After(*p.DateTo) {
		return fmt.Errorf("date range is empty: %s is after %s",
			p.DateFrom.Format(types.DateLayout), p.DateTo.Format(types.DateLayout))
	}
	return nil
}

func (p Params) options() *types.JobListOptions {
	return &types.JobListOptions{
		Page:     p.Page,
		Limit:    p.Limit,
		Status:   p.Status,
		DateFrom: p.DateFrom,
		DateTo:   p.DateTo,
	}
}

// Query holds the current parameters and the last applied page. Every
// parameter change fetches immediately.
type Query struct {
	client client.Client

	mu     sync.Mutex
	params Params
	gen    uint64
	result *types.PaginatedJobList
	err    error
}

// NewQuery creates a query with page 1 and DefaultLimit unless params say otherwise
func NewQuery(c client.Client, params Params) *Query {
	return &Query{
		client: c,
		params: params.normalize(),
	}
}

// Params returns the current parameters
func (q *Query) Params() Params {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.params
}

// Result returns the last applied page, if any
func (q *Query) Result() (types.PaginatedJobList, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.result == nil {
		return types.PaginatedJobList{}, false
	}
	return *q.result, true
}

// Err returns the error of the last applied fetch
func (q *Query) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Fetch loads the page for the current parameters
func (q *Query) Fetch(ctx context.Context) (types.PaginatedJobList, error) {
	return q.update(ctx, func(p *Params) {})
}

// SetPage moves to page. Once a result is known, pages past the last one are
// clamped to it.
func (q *Query) SetPage(ctx context.Context, page int) (types.PaginatedJobList, error) {
	return q.update(ctx, func(p *Params) {
		p.Page = q.clampLocked(page)
	})
}

// NextPage moves one page forward
func (q *Query) NextPage(ctx context.Context) (types.PaginatedJobList, error) {
	return q.update(ctx, func(p *Params) {
		p.Page = q.clampLocked(p.Page + 1)
	})
}

// PrevPage moves one page back
func (q *Query) PrevPage(ctx context.Context) (types.PaginatedJobList, error) {
	return q.update(ctx, func(p *Params) {
		p.Page = q.clampLocked(p.Page - 1)
	})
}

// SetLimit changes the page size and goes back to page 1
func (q *Query) SetLimit(ctx context.Context, limit int) (types.PaginatedJobList, error) {
	if limit < 1 {
		return types.PaginatedJobList{}, fmt.Errorf("limit must be at least 1, got %d", limit)
	}
	return q.update(ctx, func(p *Params) {
		p.Limit = limit
		p.Page = 1
	})
}

// SetStatus filters by status and goes back to page 1. An empty status
// removes the filter.
func (q *Query) SetStatus(ctx context.Context, status types.JobStatus) (types.PaginatedJobList, error) {
	return q.update(ctx, func(p *Params) {
		p.Status = status
		p.Page = 1
	})
}

// SetDateRange filters by creation date and goes back to page 1. Nil bounds
// are open.
func (q *Query) SetDateRange(ctx context.Context, from, to *time.Time) (types.PaginatedJobList, error) {
	return q.update(ctx, func(p *Params) {
		p.DateFrom = from
		p.DateTo = to
		p.Page = 1
	})
}

func (q *Query) clampLocked(page int) int {
	if q.result != nil && q.result.Meta.TotalPages > 0 && page > q.result.Meta.TotalPages {
		page = q.result.Meta.TotalPages
	}
	if page < 1 {
		page = 1
	}
	return page
}

// update applies change to a copy of the parameters, validates it, and
// fetches. Only the response for the newest parameters is applied.
func (q *Query) update(ctx context.Context, change func(*Params)) (types.PaginatedJobList, error) {
	q.mu.Lock()
	params := q.params
	change(&params)
	params = params.normalize()
	if err := params.Validate(); err != nil {
		q.mu.Unlock()
		return types.PaginatedJobList{}, err
	}
	q.params = params
	q.gen++
	gen := q.gen
	q.mu.Unlock()

	list, err := q.client.ListJobs(ctx, params.options())

	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.gen {
		logger.DebugWithFields("Discarding superseded history page", map[string]interface{}{
			"page":   params.Page,
			"status": params.Status,
		})
		return types.PaginatedJobList{}, ErrSuperseded
	}
	if err != nil {
		q.err = err
		return types.PaginatedJobList{}, err
	}

	q.err = nil
	q.result = &list
	logger.DebugWithFields("History page loaded", map[string]interface{}{
		"page":        list.Meta.Page,
		"total_pages": list.Meta.TotalPages,
		"total":       list.Meta.Total,
		"status":      params.Status,
	})
	return list, nil
}
