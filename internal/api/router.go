package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dossier/internal/dossierservice"
	"github.com/starford/dossier/internal/reviewgate"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *dossierservice.Service, gate *reviewgate.Gate, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, gate)
	th := &TransferHandler{h: h}

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/steps", h.Catalog)

	// Dossiers CRUD.
	r.Get("/dossiers", h.ListDossiers)
	r.Post("/dossiers", h.CreateDossier)
	r.Post("/dossiers/import", th.Import)
	r.Route("/dossiers/{id}", func(r chi.Router) {
		r.Use(requireDossierID)

		r.Get("/", h.GetDossier)
		r.Delete("/", h.DeleteDossier)
		r.Put("/meta", h.UpdateMeta)

		// Steps.
		r.Get("/steps/{step}", h.GetStep)
		r.Put("/steps/{step}", h.PutStep)
		r.Post("/steps/{step}/draft", h.DraftStep)
		r.Post("/visit/{step}", h.Visit)

		// Derived views.
		r.Get("/summary", h.Summary)
		r.Get("/summary.txt", h.PrintSummary)
		r.Post("/snapshots/{step}", h.InsertSnapshot)

		// Reviewer rubric.
		r.Get("/review", h.GetReview)
		r.Put("/review", h.PutReview)
		r.Post("/review/draft", h.DraftReview)

		r.Get("/export", th.Export)
	})

	// Active pointer.
	r.Get("/active", h.GetActive)
	r.Put("/active", h.PutActive)

	// Reviewer gate.
	r.Get("/reviewer/verify", h.VerifyReviewer)
	r.Get("/reviewer/status", h.ReviewerStatus)
	r.Delete("/reviewer/unlock", h.LockReviewer)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
