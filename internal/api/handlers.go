package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dossier/internal/apperr"
	"github.com/starford/dossier/internal/checksum"
	"github.com/starford/dossier/internal/dossier"
	"github.com/starford/dossier/internal/dossierservice"
	"github.com/starford/dossier/internal/reviewgate"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc  *dossierservice.Service
	gate *reviewgate.Gate
}

// NewHandler creates a new Handler.
func NewHandler(svc *dossierservice.Service, gate *reviewgate.Gate) *Handler {
	return &Handler{svc: svc, gate: gate}
}

func ifMatch(r *http.Request) string {
	return r.Header.Get("If-Match")
}

func (h *Handler) writeDocument(w http.ResponseWriter, r *http.Request, status int, id string) {
	doc, err := h.svc.Document(r.Context(), id)
	if err != nil {
		writeError(w, err, "get dossier")
		return
	}
	w.Header().Set("ETag", checksum.Quote(doc.ETag))
	writeJSON(w, status, doc)
}

// Catalog handles GET /api/steps.
//
//	@Summary		List the questionnaire steps and sprints
//	@Tags			steps
//	@Produce		json
//	@Success		200	{object}	CatalogResponse
//	@Router			/steps [get]
func (h *Handler) Catalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CatalogResponse{Steps: h.svc.Steps(), Sprints: h.svc.Sprints()})
}

// ListDossiers handles GET /api/dossiers.
//
//	@Summary		List dossiers, most recently updated first
//	@Tags			dossiers
//	@Produce		json
//	@Success		200	{object}	DossierListResponse
//	@Security		BearerAuth
//	@Router			/dossiers [get]
func (h *Handler) ListDossiers(w http.ResponseWriter, r *http.Request) {
	items := h.svc.List(r.Context())
	resp := DossierListResponse{Dossiers: items, Total: len(items)}
	if d, err := h.svc.Active(r.Context()); err == nil {
		resp.ActiveID = d.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateDossier handles POST /api/dossiers.
//
//	@Summary		Create a dossier and make it active
//	@Tags			dossiers
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDossierRequest	false	"Initial metadata or demo flag"
//	@Success		201		{object}	DossierResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dossiers [post]
func (h *Handler) CreateDossier(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateDossierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := validateCreate(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	d := h.svc.Create(r.Context(), req)
	h.writeDocument(w, r, http.StatusCreated, d.ID)
}

// GetDossier handles GET /api/dossiers/{id}.
//
//	@Summary		Get a dossier
//	@Tags			dossiers
//	@Produce		json
//	@Param			id	path		string	true	"Dossier id"
//	@Success		200	{object}	DossierResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dossiers/{id} [get]
func (h *Handler) GetDossier(w http.ResponseWriter, r *http.Request) {
	h.writeDocument(w, r, http.StatusOK, chi.URLParam(r, "id"))
}

// UpdateMeta handles PUT /api/dossiers/{id}/meta.
//
//	@Summary		Patch dossier metadata with optimistic concurrency
//	@Tags			dossiers
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Dossier id"
//	@Param			If-Match	header		string				false	"Checksum of the stored dossier"
//	@Param			body		body		dossier.MetaPatch	true	"Fields to change"
//	@Success		200			{object}	DossierResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dossiers/{id}/meta [put]
func (h *Handler) UpdateMeta(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	id := chi.URLParam(r, "id")
	var patch dossier.MetaPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := validateMeta(patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if _, err := h.svc.UpdateMeta(r.Context(), id, patch, ifMatch(r)); err != nil {
		writeError(w, err, "update meta")
		return
	}
	h.writeDocument(w, r, http.StatusOK, id)
}

// DeleteDossier handles DELETE /api/dossiers/{id}.
//
//	@Summary		Delete a dossier
//	@Tags			dossiers
//	@Param			id	path	string	true	"Dossier id"
//	@Success		204	"Dossier deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dossiers/{id} [delete]
func (h *Handler) DeleteDossier(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err, "delete dossier")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStep handles GET /api/dossiers/{id}/steps/{step}.
//
//	@Summary		Read a step payload in its current generation
//	@Tags			steps
//	@Produce		json
//	@Param			id		path		string	true	"Dossier id"
//	@Param			step	path		string	true	"Step id"	example(1-4)
//	@Success		200		{object}	StepResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dossiers/{id}/steps/{step} [get]
func (h *Handler) GetStep(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.ReadStep(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "step"))
	if err != nil {
		writeError(w, err, "read step")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// PutStep handles PUT /api/dossiers/{id}/steps/{step}. The body is the
// step payload itself, in any known generation.
//
//	@Summary		Save a step payload
//	@Tags			steps
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string	true	"Dossier id"
//	@Param			step		path		string	true	"Step id"
//	@Param			If-Match	header		string	false	"Checksum of the stored dossier"
//	@Success		200			{object}	StepResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dossiers/{id}/steps/{step} [put]
func (h *Handler) PutStep(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	v, err := h.svc.WriteStep(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "step"), body, ifMatch(r))
	if err != nil {
		writeError(w, err, "write step")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// DraftStep handles POST /api/dossiers/{id}/steps/{step}/draft.
//
//	@Summary		Schedule a debounced step save
//	@Tags			steps
//	@Accept			json
//	@Param			id		path	string	true	"Dossier id"
//	@Param			step	path	string	true	"Step id"
//	@Success		202		"Draft scheduled"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dossiers/{id}/steps/{step}/draft [post]
func (h *Handler) DraftStep(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	if err := h.svc.DraftStep(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "step"), body); err != nil {
		writeError(w, err, "draft step")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"pending": h.svc.PendingDrafts()})
}

// Visit handles POST /api/dossiers/{id}/visit/{step}.
//
//	@Summary		Record a step visit
//	@Tags			steps
//	@Produce		json
//	@Param			id		path		string	true	"Dossier id"
//	@Param			step	path		string	true	"Step id"
//	@Success		200		{object}	DossierResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dossiers/{id}/visit/{step} [post]
func (h *Handler) Visit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.svc.Visit(r.Context(), id, chi.URLParam(r, "step")); err != nil {
		writeError(w, err, "visit")
		return
	}
	h.writeDocument(w, r, http.StatusOK, id)
}

// Summary handles GET /api/dossiers/{id}/summary.
//
//	@Summary		Derived progress, evidence, gate and metric views
//	@Tags			summary
//	@Produce		json
//	@Param			id	path		string	true	"Dossier id"
//	@Success		200	{object}	SummaryResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dossiers/{id}/summary [get]
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "summary")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// PrintSummary handles GET /api/dossiers/{id}/summary.txt.
//
//	@Summary		Printable plain-text summary
//	@Tags			summary
//	@Produce		plain
//	@Param			id	path		string	true	"Dossier id"
//	@Success		200	{string}	string
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dossiers/{id}/summary.txt [get]
func (h *Handler) PrintSummary(w http.ResponseWriter, r *http.Request) {
	text, err := h.svc.PrintSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "print summary")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

// InsertSnapshot handles POST /api/dossiers/{id}/snapshots/{step}.
//
//	@Summary		Insert the 1-4 or 1-6 snapshot into the gate review
//	@Tags			summary
//	@Produce		json
//	@Param			id		path		string	true	"Dossier id"
//	@Param			step	path		string	true	"Source step"	Enums(1-4, 1-6)
//	@Success		200		{object}	StepResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dossiers/{id}/snapshots/{step} [post]
func (h *Handler) InsertSnapshot(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.InsertSnapshot(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "step"))
	if err != nil {
		writeError(w, err, "snapshot")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GetReview handles GET /api/dossiers/{id}/review.
//
//	@Summary		Read the reviewer rubric
//	@Tags			review
//	@Produce		json
//	@Param			id	path		string	true	"Dossier id"
//	@Success		200	{object}	ReviewResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dossiers/{id}/review [get]
func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	rv, err := h.svc.Review(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "get review")
		return
	}
	writeJSON(w, http.StatusOK, newReviewResponse(rv, h.gate.Unlocked(r.Context())))
}

func decodeReview(w http.ResponseWriter, r *http.Request) (ReviewRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return req, false
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return req, false
	}
	return req, true
}

// PutReview handles PUT /api/dossiers/{id}/review.
//
//	@Summary		Save the reviewer rubric
//	@Tags			review
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Dossier id"
//	@Param			body	body		ReviewRequest	true	"Rubric scores and notes"
//	@Success		200		{object}	ReviewResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dossiers/{id}/review [put]
func (h *Handler) PutReview(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeReview(w, r)
	if !ok {
		return
	}
	rv, err := h.svc.SaveReview(r.Context(), chi.URLParam(r, "id"), req.toReview())
	if err != nil {
		writeError(w, err, "save review")
		return
	}
	writeJSON(w, http.StatusOK, newReviewResponse(rv, h.gate.Unlocked(r.Context())))
}

// DraftReview handles POST /api/dossiers/{id}/review/draft.
//
//	@Summary		Schedule a debounced rubric save
//	@Tags			review
//	@Accept			json
//	@Param			id		path	string			true	"Dossier id"
//	@Param			body	body	ReviewRequest	true	"Rubric scores and notes"
//	@Success		202		"Draft scheduled"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dossiers/{id}/review/draft [post]
func (h *Handler) DraftReview(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeReview(w, r)
	if !ok {
		return
	}
	if err := h.svc.DraftReview(r.Context(), chi.URLParam(r, "id"), req.toReview()); err != nil {
		writeError(w, err, "draft review")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"pending": h.svc.PendingDrafts()})
}

// GetActive handles GET /api/active.
//
//	@Summary		Resolve the active dossier
//	@Tags			active
//	@Produce		json
//	@Success		200	{object}	ActiveResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/active [get]
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Active(r.Context())
	if err != nil {
		writeError(w, err, "get active")
		return
	}
	writeJSON(w, http.StatusOK, ActiveResponse{ID: d.ID, Dossier: d})
}

// PutActive handles PUT /api/active.
//
//	@Summary		Switch the active dossier
//	@Tags			active
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ActiveRequest	true	"Dossier to activate"
//	@Success		200		{object}	ActiveResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/active [put]
func (h *Handler) PutActive(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req ActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	id := strings.TrimSpace(req.ID)
	if err := h.svc.SetActive(r.Context(), id); err != nil {
		writeError(w, err, "set active")
		return
	}
	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err, "set active")
		return
	}
	writeJSON(w, http.StatusOK, ActiveResponse{ID: id, Dossier: d})
}

// VerifyReviewer handles GET /api/reviewer/verify?key=.
//
//	@Summary		Verify the reviewer key and unlock reviewer mode
//	@Tags			reviewer
//	@Produce		json
//	@Param			key	query		string	true	"Reviewer key"
//	@Success		200	{object}	VerifyResponse
//	@Failure		401	{object}	VerifyResponse
//	@Failure		500	{object}	VerifyResponse
//	@Router			/reviewer/verify [get]
func (h *Handler) VerifyReviewer(w http.ResponseWriter, r *http.Request) {
	err := h.gate.Unlock(r.Context(), r.URL.Query().Get("key"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, VerifyResponse{OK: true})
	case errors.Is(err, apperr.ErrNotConfigured):
		writeJSON(w, http.StatusInternalServerError, VerifyResponse{Error: "Reviewer key not configured"})
	default:
		slog.Info("reviewer verification failed")
		writeJSON(w, http.StatusUnauthorized, VerifyResponse{})
	}
}

// ReviewerStatus handles GET /api/reviewer/status.
//
//	@Summary		Reviewer gate state
//	@Tags			reviewer
//	@Produce		json
//	@Success		200	{object}	ReviewerStatusResponse
//	@Router			/reviewer/status [get]
func (h *Handler) ReviewerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ReviewerStatusResponse{
		Configured: h.gate.Configured(),
		Unlocked:   h.gate.Unlocked(r.Context()),
	})
}

// LockReviewer handles DELETE /api/reviewer/unlock.
//
//	@Summary		Clear the reviewer unlock flag
//	@Tags			reviewer
//	@Success		204	"Flag cleared"
//	@Router			/reviewer/unlock [delete]
func (h *Handler) LockReviewer(w http.ResponseWriter, r *http.Request) {
	h.gate.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
