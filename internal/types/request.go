package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Style is the tone of the generated descriptions
type Style string

// Supported styles
const (
	StyleProfessional Style = "professional"
	StyleCasual       Style = "casual"
	StyleSalesFocused Style = "sales-focused"
)

// Language is the language of the generated descriptions
type Language string

// Supported languages
const (
	LanguagePL Language = "pl"
	LanguageEN Language = "en"
)

// PublicationMode controls whether generated content is published right away
type PublicationMode string

// Supported publication modes
const (
	PublicationModeDraft     PublicationMode = "draft"
	PublicationModePublished PublicationMode = "published"
)

// ErrInvalidRequest is wrapped by every GenerationRequest validation failure
var ErrInvalidRequest = errors.New("invalid generation request")

var validate = validator.New(validator.WithRequiredStructEnabled())

// GenerationRequest is the payload sent to create a generation job
type GenerationRequest struct {
	ItemIDs         []string        `json:"itemIds" validate:"required,min=1,dive,required"`
	Style           Style           `json:"style" validate:"required,oneof=professional casual sales-focused"`
	Language        Language        `json:"language" validate:"required,oneof=pl en"`
	PublicationMode PublicationMode `json:"publicationMode" validate:"required,oneof=draft published"`
}

// Validate checks the request against the supported enums.
func (r GenerationRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// JobItemResult is the per-item outcome of a create-job call
type JobItemResult struct {
	ItemID  string `json:"itemId"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SubmitSummary aggregates per-item create-job results
type SubmitSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Error   int `json:"error"`
}

// CreateJobResponse is returned by the create-job endpoint
type CreateJobResponse struct {
	JobID   string          `json:"jobId"`
	Results []JobItemResult `json:"results,omitempty"`
	Summary *SubmitSummary  `json:"summary,omitempty"`
}
