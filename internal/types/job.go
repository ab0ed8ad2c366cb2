package types

import (
	"errors"
	"fmt"
	"time"
)

// JobStatus represents the server-side status of a generation job
type JobStatus string

// Job status values
const (
	// JobStatusPending indicates the job was accepted but not started
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates the job is generating content
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates every item was processed
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job stopped because of an error
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled by the user
	JobStatusCancelled JobStatus = "cancelled"
)

// ErrInconsistentEstimate is returned for a job whose cost estimate and token
// estimate are not both present or both absent.
var ErrInconsistentEstimate = errors.New("inconsistent cost estimate: totalCostEstimate and estimatedTokensTotal must be set together")

// IsTerminal reports whether no further transition can leave this status
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValid reports whether s is a known job status
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseJobStatus converts a string to a JobStatus
func ParseJobStatus(str string) (JobStatus, error) {
	s := JobStatus(str)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid job status: %q", str)
	}
	return s, nil
}

// Job is a server-tracked generation job
type Job struct {
	ID                   string          `json:"id"`
	Status               JobStatus       `json:"status"`
	Progress             int             `json:"progress"`
	CreatedAt            time.Time       `json:"createdAt"`
	Style                Style           `json:"style"`
	Language             Language        `json:"language"`
	PublicationMode      PublicationMode `json:"publicationMode"`
	TotalCostEstimate    *float64        `json:"totalCostEstimate"`
	EstimatedTokensTotal *int64          `json:"estimatedTokensTotal"`
}

// CostEstimated reports whether the asynchronous cost estimation has finished
func (j *Job) CostEstimated() bool {
	return j != nil && j.TotalCostEstimate != nil && j.EstimatedTokensTotal != nil
}

// Clone returns a copy of j that shares no memory with it
func (j Job) Clone() Job {
	if j.TotalCostEstimate != nil {
		v := *j.TotalCostEstimate
		j.TotalCostEstimate = &v
	}
	if j.EstimatedTokensTotal != nil {
		v := *j.EstimatedTokensTotal
		j.EstimatedTokensTotal = &v
	}
	return j
}

// Validate checks the invariants every fetched job must satisfy
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if !j.Status.IsValid() {
		return fmt.Errorf("invalid job status: %q", j.Status)
	}
	if (j.TotalCostEstimate == nil) != (j.EstimatedTokensTotal == nil) {
		return ErrInconsistentEstimate
	}
	return nil
}

// JobItemStatus represents the status of a single item inside a job
type JobItemStatus string

// Job item status values
const (
	JobItemStatusPending    JobItemStatus = "pending"
	JobItemStatusProcessing JobItemStatus = "processing"
	JobItemStatusCompleted  JobItemStatus = "completed"
	JobItemStatusFailed     JobItemStatus = "failed"
)

// TokenUsage is the number of tokens consumed by one item
type TokenUsage struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
}

// JobItem is a child record of a job, one per catalog item
type JobItem struct {
	ItemID     string        `json:"itemId"`
	Status     JobItemStatus `json:"status"`
	Cost       *float64      `json:"cost"`
	TokenUsage *TokenUsage   `json:"tokenUsage"`
}

// Clone returns a copy of i that shares no memory with it
func (i JobItem) Clone() JobItem {
	if i.Cost != nil {
		v := *i.Cost
		i.Cost = &v
	}
	if i.TokenUsage != nil {
		u := *i.TokenUsage
		i.TokenUsage = &u
	}
	return i
}

// CloneItems deep copies items. A nil slice stays nil.
func CloneItems(items []JobItem) []JobItem {
	if items == nil {
		return nil
	}
	out := make([]JobItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

// ItemSummary aggregates the items of a job
type ItemSummary struct {
	Total        int     `json:"total"`
	Completed    int     `json:"completed"`
	Failed       int     `json:"failed"`
	Pending      int     `json:"pending"`
	RealizedCost float64 `json:"realizedCost"`
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
}

// SummarizeItems derives completed counts and realized cost from job items
func SummarizeItems(items []JobItem) ItemSummary {
	sum := ItemSummary{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case JobItemStatusCompleted:
			sum.Completed++
		case JobItemStatusFailed:
			sum.Failed++
		default:
			sum.Pending++
		}
		if item.Cost != nil {
			sum.RealizedCost += *item.Cost
		}
		if item.TokenUsage != nil {
			sum.InputTokens += item.TokenUsage.Input
			sum.OutputTokens += item.TokenUsage.Output
		}
	}
	return sum
}
