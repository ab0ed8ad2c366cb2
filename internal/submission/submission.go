// Package submission turns a selection and generation parameters into exactly
// one create-job request.
package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/celestiaorg/descgen/internal/logger"
	"github.com/celestiaorg/descgen/internal/selection"
	"github.com/celestiaorg/descgen/internal/types"
	"github.com/celestiaorg/descgen/pkg/api/v1/client"
)

// ErrEmptySelection is returned when a request has no items
var ErrEmptySelection = errors.New("no items selected")

// SubmitError wraps a failed create-job call
type SubmitError struct {
	SubmissionID string
	Err          error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submission %s failed: %v", e.SubmissionID, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Params are the generation parameters applied to every selected item
type Params struct {
	Style           types.Style
	Language        types.Language
	PublicationMode types.PublicationMode
}

// Result is the outcome of a successful submission
type Result struct {
	SubmissionID string                `json:"submissionId"`
	JobID        string                `json:"jobId"`
	Results      []types.JobItemResult `json:"results"`
	Summary      types.SubmitSummary   `json:"summary"`
}

// Coordinator submits generation requests. It never polls and never retries.
type Coordinator struct {
	client client.Client
}

// NewCoordinator creates a coordinator using c for the create-job call
func NewCoordinator(c client.Client) *Coordinator {
	return &Coordinator{client: c}
}

// SubmitSelection builds a request from the current members of sel.
// The selection itself is left untouched.
func (c *Coordinator) SubmitSelection(ctx context.Context, sel selection.Reader, params Params) (*Result, error) {
	return c.Submit(ctx, types.GenerationRequest{
		ItemIDs:         sel.Members(),
		Style:           params.Style,
		Language:        params.Language,
		PublicationMode: params.PublicationMode,
	})
}

// Submit validates req and issues a single create-job call
func (c *Coordinator) Submit(ctx context.Context, req types.GenerationRequest) (*Result, error) {
	if len(req.ItemIDs) == 0 {
		return nil, ErrEmptySelection
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// The request is immutable from here on
	req.ItemIDs = append([]string(nil), req.ItemIDs...)

	submissionID := uuid.NewString()
	fields := map[string]interface{}{
		"submission_id":    submissionID,
		"items":            len(req.ItemIDs),
		"style":            req.Style,
		"language":         req.Language,
		"publication_mode": req.PublicationMode,
	}
	logger.DebugWithFields("Submitting generation job", fields)

	resp, err := c.client.CreateJob(client.WithIdempotencyKey(ctx, submissionID), req)
	if err != nil {
		fields["error"] = err.Error()
		logger.ErrorWithFields("Job submission failed", fields)
		return nil, &SubmitError{SubmissionID: submissionID, Err: err}
	}

	res := &Result{
		SubmissionID: submissionID,
		JobID:        resp.JobID,
		Results:      resp.Results,
	}
	if len(res.Results) == 0 {
		res.Results = make([]types.JobItemResult, len(req.ItemIDs))
		for i, id := range req.ItemIDs {
			res.Results[i] = types.JobItemResult{ItemID: id, Success: true}
		}
	}
	if resp.Summary != nil {
		res.Summary = *resp.Summary
	} else {
		res.Summary = summarize(res.Results)
	}

	fields["job_id"] = res.JobID
	fields["accepted"] = res.Summary.Success
	fields["rejected"] = res.Summary.Error
	logger.InfoWithFields("Generation job created", fields)

	return res, nil
}

func summarize(results []types.JobItemResult) types.SubmitSummary {
	sum := types.SubmitSummary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			sum.Success++
		} else {
			sum.Error++
		}
	}
	return sum
}
