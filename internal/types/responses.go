package types

import (
	"net/url"
	"strconv"
	"time"
)

// DateLayout is the wire format for the job list date range filter
const DateLayout = "2006-01-02"

// PaginationMeta describes one page of a list response
// Example: {"total":42,"page":1,"limit":20,"totalPages":3}
type PaginationMeta struct {
	// Total number of jobs matching the filter
	Total int `json:"total"`

	// Current page number (1-based)
	Page int `json:"page"`

	// Maximum number of jobs per page
	Limit int `json:"limit"`

	// Number of pages for the current limit
	TotalPages int `json:"totalPages"`
}

// PaginatedJobList is the response of the job list endpoint
type PaginatedJobList struct {
	Data []Job          `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

// JobItemsResponse is the response of the job items endpoint
type JobItemsResponse struct {
	Data []JobItem `json:"data"`
}

// ErrorResponse is the JSON error body returned on non-2xx responses
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// JobListOptions holds the query parameters of the job list endpoint
type JobListOptions struct {
	Page     int
	Limit    int
	Status   JobStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

// Values encodes the options as query parameters, skipping zero values
func (o *JobListOptions) Values() url.Values {
	q := url.Values{}
	if o == nil {
		return q
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Status != "" {
		q.Set("status", string(o.Status))
	}
	if o.DateFrom != nil {
		q.Set("dateFrom", o.DateFrom.Format(DateLayout))
	}
	if o.DateTo != nil {
		q.Set("dateTo", o.DateTo.Format(DateLayout))
	}
	return q
}
