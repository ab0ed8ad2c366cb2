package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/descgen/internal/poller"
	"github.com/celestiaorg/descgen/internal/tracker"
	"github.com/celestiaorg/descgen/internal/types"
)

// printJSON pretty prints v to the command output
func printJSON(cmd *cobra.Command, v interface{}) error {
	prettyJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error formatting response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(prettyJSON))
	return nil
}

// Cost estimate states reported by watch
const (
	costResolved = "resolved"
	costTimedOut = "timed_out"
	costPending  = "pending"
	costDisabled = "disabled"
)

// jobItemsOutput is the output of the items command
type jobItemsOutput struct {
	JobID   string            `json:"jobId"`
	Items   []types.JobItem   `json:"items"`
	Summary types.ItemSummary `json:"summary"`
}

// watchOutput is the final state printed by watch, cancel --wait and submit --watch
type watchOutput struct {
	JobID                string            `json:"jobId"`
	Status               types.JobStatus   `json:"status,omitempty"`
	Progress             int               `json:"progress"`
	Summary              types.ItemSummary `json:"summary"`
	Cost                 string            `json:"cost"`
	TotalCostEstimate    *float64          `json:"totalCostEstimate,omitempty"`
	EstimatedTokensTotal *int64            `json:"estimatedTokensTotal,omitempty"`
	Error                string            `json:"error,omitempty"`
}

func newWatchOutput(s tracker.Snapshot) watchOutput {
	out := watchOutput{
		JobID:   s.JobID,
		Summary: s.Progress.Summary,
		Cost:    costState(s.Cost),
	}
	if job := s.Progress.Job; job != nil {
		out.Status = job.Status
		out.Progress = job.Progress
	}
	if s.Cost.Resolved && s.Cost.Job != nil {
		out.TotalCostEstimate = s.Cost.Job.TotalCostEstimate
		out.EstimatedTokensTotal = s.Cost.Job.EstimatedTokensTotal
	}
	if s.Progress.Err != nil {
		out.Error = s.Progress.Err.Error()
	}
	return out
}

func costState(s poller.CostSnapshot) string {
	switch {
	case s.Resolved:
		return costResolved
	case s.TimedOut:
		return costTimedOut
	case !s.Enabled:
		return costDisabled
	default:
		return costPending
	}
}
