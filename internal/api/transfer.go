package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dossier/internal/checksum"
	"github.com/starford/dossier/internal/repository"
)

const maxImportBytes = 10 << 20 // 10 MB

// TransferHandler serves dossier export and import.
type TransferHandler struct {
	h *Handler
}

// readImportText returns the document text of an import request. A
// multipart form carries it in the "file" field; anything else is the raw
// request body.
func readImportText(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read body: %w", err)
		}
		return string(data), nil
	}

	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		return "", fmt.Errorf("file too large or invalid multipart")
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return "", fmt.Errorf("missing 'file' field in multipart form")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file")
	}
	return string(data), nil
}

// Export handles GET /api/dossiers/{id}/export.
//
//	@Summary		Download the stored dossier text
//	@Tags			transfer
//	@Produce		json
//	@Param			id	path	string	true	"Dossier id"
//	@Success		200	{file}	file
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dossiers/{id}/export [get]
func (t *TransferHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	text, filename, sum, err := t.h.svc.Export(r.Context(), id)
	if err != nil {
		writeError(w, err, "export")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("ETag", checksum.Quote(sum))
	w.Header().Set("Content-Length", strconv.Itoa(len(text)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

// Import handles POST /api/dossiers/import (raw JSON body or multipart
// field "file"). With ?new_id=true the document gets a fresh id.
//
//	@Summary		Import a dossier and make it active
//	@Tags			transfer
//	@Accept			json
//	@Produce		json
//	@Param			new_id	query		bool	false	"Store under a new id"
//	@Success		201		{object}	DossierResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dossiers/import [post]
func (t *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	text, err := readImportText(w, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("file too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	newID, _ := strconv.ParseBool(r.URL.Query().Get("new_id"))

	d, err := t.h.svc.Import(r.Context(), text, repository.ImportOptions{NewID: newID})
	if err != nil {
		slog.Info("import rejected", slog.String("error", err.Error()))
		writeError(w, err, "import")
		return
	}
	t.h.writeDocument(w, r, http.StatusCreated, d.ID)
}
