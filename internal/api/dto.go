package api

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dossier/internal/dossier"
	"github.com/starford/dossier/internal/dossierservice"
	"github.com/starford/dossier/internal/repository"
	"github.com/starford/dossier/internal/review"
	"github.com/starford/dossier/internal/summary"
)

const maxNameLen = 200

// CatalogResponse lists the steps and sprints of the questionnaire.
type CatalogResponse struct {
	Steps   []dossier.Step   `json:"steps" validate:"required"`
	Sprints []dossier.Sprint `json:"sprints" validate:"required"`
}

// DossierListResponse wraps dossier summaries.
type DossierListResponse struct {
	Dossiers []repository.Summary `json:"dossiers" validate:"required"`
	Total    int                  `json:"total" example:"3" validate:"required"`
	ActiveID string               `json:"activeId,omitempty" example:"6f1c2a9e-8d0b-4c5e-9a7f-1b2c3d4e5f60"`
}

// CreateDossierRequest is the request body for creating a dossier.
type CreateDossierRequest = dossierservice.CreateRequest

func validateCreate(req CreateDossierRequest) error {
	return validateMeta(req.Meta)
}

func validateMeta(p dossier.MetaPatch) error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ProjectName, validation.NilOrNotEmpty, validation.Length(0, maxNameLen)),
		validation.Field(&p.Organisation, validation.Length(0, maxNameLen)),
	)
}

// DossierResponse is a full dossier with the ETag of its stored text.
type DossierResponse = dossierservice.Document

// StepResponse is one step of a dossier.
type StepResponse = dossierservice.StepView

// SummaryResponse bundles the derived views of a dossier.
type SummaryResponse = summary.Report

// ReviewResponse is the reviewer rubric with its total.
type ReviewResponse struct {
	Review   review.Review `json:"review" validate:"required"`
	Total    float64       `json:"total" example:"7.5" validate:"required"`
	Max      int           `json:"max" example:"10" validate:"required"`
	Rubric   []review.Item `json:"rubric" validate:"required"`
	Unlocked bool          `json:"unlocked"`
}

func newReviewResponse(r review.Review, unlocked bool) ReviewResponse {
	return ReviewResponse{
		Review:   r,
		Total:    r.Total(),
		Max:      review.MaxScore * len(review.Keys()),
		Rubric:   review.Rubric(),
		Unlocked: unlocked,
	}
}

// ReviewRequest is the request body for saving a reviewer rubric.
type ReviewRequest struct {
	Scores       map[string]float64 `json:"scores"`
	Notes        map[string]string  `json:"notes"`
	OverallNotes string             `json:"overallNotes"`
}

// Validate rejects scores for keys outside the rubric. Out-of-range scores
// are accepted and clamped on save.
func (r ReviewRequest) Validate() error {
	keys := make([]any, 0, len(review.Keys()))
	for _, k := range review.Keys() {
		keys = append(keys, k)
	}
	knownKeys := validation.By(func(any) error {
		for k := range r.Scores {
			if err := validation.Validate(k, validation.In(keys...)); err != nil {
				return validation.NewError("validation_unknown_key", "unknown rubric key "+k)
			}
		}
		return nil
	})
	return validation.ValidateStruct(&r,
		validation.Field(&r.Scores, knownKeys),
	)
}

func (r ReviewRequest) toReview() review.Review {
	out := review.Default("")
	for k, v := range r.Scores {
		out.Scores[k] = v
	}
	for k, v := range r.Notes {
		out.Notes[k] = v
	}
	out.OverallNotes = r.OverallNotes
	return out
}

// ActiveRequest is the request body for switching the active dossier.
type ActiveRequest struct {
	ID string `json:"id" example:"6f1c2a9e-8d0b-4c5e-9a7f-1b2c3d4e5f60" validate:"required"`
}

// Validate checks the request.
func (r ActiveRequest) Validate() error {
	r.ID = strings.TrimSpace(r.ID)
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required, validation.Length(1, 128)),
	)
}

// ActiveResponse reports the active dossier.
type ActiveResponse struct {
	ID      string           `json:"id"`
	Dossier *dossier.Dossier `json:"dossier,omitempty"`
}

// VerifyResponse is the reviewer key verification result.
type VerifyResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ReviewerStatusResponse reports the reviewer gate state.
type ReviewerStatusResponse struct {
	Configured bool `json:"configured"`
	Unlocked   bool `json:"unlocked"`
}
