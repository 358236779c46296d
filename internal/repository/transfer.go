package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/dossier/internal/apperr"
	"github.com/starford/dossier/internal/dossier"
	"github.com/starford/dossier/internal/ident"
	"github.com/starford/dossier/internal/links"
)

// ImportOptions tunes Import.
type ImportOptions struct {
	// NewID stores the document under a freshly allocated id instead of
	// overwriting the one it carries.
	NewID bool
}

// Export returns the stored text of dossier id byte for byte.
func (r *Repository) Export(ctx context.Context, id string) (string, bool) {
	return r.Raw(ctx, id)
}

// ExportFilename is the download name for dossier id.
func (r *Repository) ExportFilename(ctx context.Context, id string) string {
	name := ""
	if d := r.Get(ctx, id); d != nil {
		name = d.Meta.ProjectName
	}
	return links.ExportFilename(name, id)
}

// Import validates text as a dossier, backfills missing fields, stamps it
// updated now, stores it and makes it active. A carried id that does not
// match the generated pattern is replaced by a fresh one. Nothing is written unless the
// document is valid. Errors wrap apperr.ErrInvalidJSON or
// apperr.ErrNotDossier.
func (r *Repository) Import(ctx context.Context, text string, opts ImportOptions) (*dossier.Dossier, error) {
	d, err := r.parseImport(text, opts)
	if err != nil {
		r.logger.Info("repository: import rejected", slog.String("error", err.Error()))
		return nil, fmt.Errorf("import failed: %w", err)
	}
	r.Upsert(ctx, d)
	r.SetActiveID(ctx, d.ID)
	r.logger.Info("repository: imported", slog.String("id", d.ID))
	return d, nil
}

func (r *Repository) parseImport(text string, opts ImportOptions) (*dossier.Dossier, error) {
	var generic any
	if err := json.Unmarshal([]byte(text), &generic); err != nil {
		return nil, apperr.ErrInvalidJSON
	}
	if !dossier.HasShape(generic) {
		return nil, apperr.ErrNotDossier
	}
	d := dossier.Decode([]byte(text))
	if d == nil {
		return nil, apperr.ErrNotDossier
	}

	d.ID = strings.TrimSpace(d.ID)
	switch {
	case opts.NewID:
		d.ID = r.ids.New()
	case d.ID == "":
		return nil, apperr.ErrNotDossier
	case !ident.Valid(d.ID):
		next := r.ids.New()
		r.logger.Info("repository: import id reassigned", slog.String("from", d.ID), slog.String("to", next))
		d.ID = next
	}

	now := r.Now()
	if d.Version == "" {
		d.Version = dossier.Version
	}
	if d.Meta.ProjectName == "" {
		d.Meta.ProjectName = dossier.ImportedProjectName
	}
	if d.CreatedAt == "" {
		d.CreatedAt = now
	}
	if d.LastVisitedStepID == "" {
		d.LastVisitedStepID = dossier.FirstStepID
	}
	d.UpdatedAt = now

	if r.migrator != nil {
		changed, err := r.migrator.MigrateAll(d)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperr.ErrNotDossier, err)
		}
		if len(changed) > 0 {
			r.logger.Info("repository: migrated imported steps", slog.String("id", d.ID), slog.Any("steps", changed))
		}
	}
	return d, nil
}
