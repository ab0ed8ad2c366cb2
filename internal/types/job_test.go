package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float64Ptr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64       { return &v }

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   JobStatus
		terminal bool
	}{
		{JobStatusPending, false},
		{JobStatusProcessing, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
		{JobStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.True(t, tt.status.IsValid())
		})
	}
}

func TestParseJobStatus(t *testing.T) {
	s, err := ParseJobStatus("processing")
	require.NoError(t, err)
	assert.Equal(t, JobStatusProcessing, s)

	_, err = ParseJobStatus("running")
	assert.Error(t, err)
}

func TestJob_Validate(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		wantErr error
	}{
		{
			name: "estimation pending",
			job:  Job{ID: "job-1", Status: JobStatusPending},
		},
		{
			name: "estimation done",
			job: Job{
				ID:                   "job-1",
				Status:               JobStatusProcessing,
				TotalCostEstimate:    float64Ptr(0.42),
				EstimatedTokensTotal: int64Ptr(1200),
			},
		},
		{
			name:    "cost without tokens",
			job:     Job{ID: "job-1", Status: JobStatusPending, TotalCostEstimate: float64Ptr(1)},
			wantErr: ErrInconsistentEstimate,
		},
		{
			name:    "tokens without cost",
			job:     Job{ID: "job-1", Status: JobStatusPending, EstimatedTokensTotal: int64Ptr(1)},
			wantErr: ErrInconsistentEstimate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	assert.Error(t, (&Job{Status: JobStatusPending}).Validate(), "missing id")
	assert.Error(t, (&Job{ID: "x", Status: "bogus"}).Validate(), "unknown status")
}

func TestJob_CostEstimated(t *testing.T) {
	var nilJob *Job
	assert.False(t, nilJob.CostEstimated())
	assert.False(t, (&Job{}).CostEstimated())
	assert.True(t, (&Job{TotalCostEstimate: float64Ptr(0), EstimatedTokensTotal: int64Ptr(0)}).CostEstimated())
}

func TestJob_Clone(t *testing.T) {
	job := Job{ID: "job-1", Status: JobStatusProcessing, TotalCostEstimate: float64Ptr(1.5), EstimatedTokensTotal: int64Ptr(900)}

	clone := job.Clone()
	assert.Equal(t, job, clone)

	*clone.TotalCostEstimate = 42
	*clone.EstimatedTokensTotal = 1
	assert.Equal(t, 1.5, *job.TotalCostEstimate)
	assert.Equal(t, int64(900), *job.EstimatedTokensTotal)

	empty := Job{ID: "job-2"}.Clone()
	assert.Nil(t, empty.TotalCostEstimate)
	assert.Nil(t, empty.EstimatedTokensTotal)
}

func TestCloneItems(t *testing.T) {
	assert.Nil(t, CloneItems(nil))

	items := []JobItem{
		{ItemID: "a", Status: JobItemStatusCompleted, Cost: float64Ptr(0.2), TokenUsage: &TokenUsage{Input: 10, Output: 30}},
		{ItemID: "b", Status: JobItemStatusPending},
	}
	clone := CloneItems(items)
	require.Len(t, clone, 2)
	assert.Equal(t, items, clone)

	*clone[0].Cost = 9
	clone[0].TokenUsage.Input = 0
	clone[1].Status = JobItemStatusFailed
	assert.Equal(t, 0.2, *items[0].Cost)
	assert.Equal(t, int64(10), items[0].TokenUsage.Input)
	assert.Equal(t, JobItemStatusPending, items[1].Status)
}

func TestJob_UnmarshalNullEstimates(t *testing.T) {
	body := `{"id":"job-7","status":"processing","progress":40,"createdAt":"2026-10-01T10:00:00Z",
		"style":"casual","language":"en","publicationMode":"draft",
		"totalCostEstimate":null,"estimatedTokensTotal":null}`

	var job Job
	require.NoError(t, json.Unmarshal([]byte(body), &job))
	assert.Equal(t, "job-7", job.ID)
	assert.Equal(t, 40, job.Progress)
	assert.Equal(t, StyleCasual, job.Style)
	assert.Nil(t, job.TotalCostEstimate)
	assert.Nil(t, job.EstimatedTokensTotal)
	assert.NoError(t, job.Validate())
}

func TestSummarizeItems(t *testing.T) {
	items := []JobItem{
		{ItemID: "a", Status: JobItemStatusCompleted, Cost: float64Ptr(0.10), TokenUsage: &TokenUsage{Input: 100, Output: 50}},
		{ItemID: "b", Status: JobItemStatusCompleted, Cost: float64Ptr(0.15), TokenUsage: &TokenUsage{Input: 120, Output: 60}},
		{ItemID: "c", Status: JobItemStatusFailed},
		{ItemID: "d", Status: JobItemStatusProcessing},
		{ItemID: "e", Status: JobItemStatusPending},
	}

	sum := SummarizeItems(items)
	assert.Equal(t, 5, sum.Total)
	assert.Equal(t, 2, sum.Completed)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 2, sum.Pending)
	assert.InDelta(t, 0.25, sum.RealizedCost, 1e-9)
	assert.Equal(t, int64(220), sum.InputTokens)
	assert.Equal(t, int64(110), sum.OutputTokens)

	assert.Equal(t, ItemSummary{}, SummarizeItems(nil))
}
