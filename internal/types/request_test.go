package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerationRequest_Validate(t *testing.T) {
	valid := GenerationRequest{
		ItemIDs:         []string{"p-1", "p-2", "p-3"},
		Style:           StyleCasual,
		Language:        LanguageEN,
		PublicationMode: PublicationModeDraft,
	}

	tests := []struct {
		name    string
		mutate  func(r *GenerationRequest)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid request",
			mutate: func(_ *GenerationRequest) {},
		},
		{
			name:    "no items",
			mutate:  func(r *GenerationRequest) { r.ItemIDs = nil },
			wantErr: true,
			errMsg:  "ItemIDs",
		},
		{
			name:    "blank item id",
			mutate:  func(r *GenerationRequest) { r.ItemIDs = []string{"p-1", ""} },
			wantErr: true,
			errMsg:  "ItemIDs[1]",
		},
		{
			name:    "unknown style",
			mutate:  func(r *GenerationRequest) { r.Style = "poetic" },
			wantErr: true,
			errMsg:  "Style failed on oneof",
		},
		{
			name:    "unknown language",
			mutate:  func(r *GenerationRequest) { r.Language = "de" },
			wantErr: true,
			errMsg:  "Language",
		},
		{
			name:    "missing publication mode",
			mutate:  func(r *GenerationRequest) { r.PublicationMode = "" },
			wantErr: true,
			errMsg:  "PublicationMode failed on required",
		},
		{
			name:   "sales focused published",
			mutate: func(r *GenerationRequest) { r.Style = StyleSalesFocused; r.PublicationMode = PublicationModePublished; r.Language = LanguagePL },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			req.ItemIDs = append([]string(nil), valid.ItemIDs...)
			tt.mutate(&req)

			err := req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestJobListOptions_Values(t *testing.T) {
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)

	opts := &JobListOptions{Page: 2, Limit: 20, Status: JobStatusFailed, DateFrom: &from, DateTo: &to}
	q := opts.Values()
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "20", q.Get("limit"))
	assert.Equal(t, "failed", q.Get("status"))
	assert.Equal(t, "2026-09-01", q.Get("dateFrom"))
	assert.Equal(t, "2026-09-30", q.Get("dateTo"))

	var nilOpts *JobListOptions
	assert.Empty(t, nilOpts.Values())
	assert.Empty(t, (&JobListOptions{}).Values().Encode())
}
