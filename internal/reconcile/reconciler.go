// Package reconcile keeps local query files, the manifest and the remote
// service in step: it binds new files to freshly created remote queries and
// pushes the SQL of bound files to their remote counterparts.
//
// Failures are contained per file or per id. Only a failure that affects the
// whole pass, such as an unreadable queries directory or manifest, is
// returned as an error.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"dune-sync/internal/definition"
	"dune-sync/internal/domain"
	"dune-sync/internal/manifest"
)

// Reconciler binds and updates query definitions.
type Reconciler struct {
	svc          domain.QueryService
	scanner      *definition.Scanner
	manifestPath string
	logger       *slog.Logger
}

// New creates a Reconciler. A nil logger uses slog.Default().
func New(svc domain.QueryService, scanner *definition.Scanner, manifestPath string, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{svc: svc, scanner: scanner, manifestPath: manifestPath, logger: logger}
}

// CreateReport summarises a create pass.
type CreateReport struct {
	Created  []domain.QueryID `json:"created"`
	Bound    []string         `json:"files"`
	Failed   []string         `json:"failed,omitempty"`
	Empty    []string         `json:"skipped_empty,omitempty"`
	Manifest []domain.QueryID `json:"manifest"`
	Found    int              `json:"found"`
}

// UpdateReport summarises an update pass.
type UpdateReport struct {
	Updated []domain.QueryID `json:"updated"`
	Missing []domain.QueryID `json:"missing,omitempty"`
	Empty   []domain.QueryID `json:"skipped_empty,omitempty"`
	Failed  []domain.QueryID `json:"failed,omitempty"`
}

// Bind creates a public remote query from an unbound definition and renames
// the file so it embeds the returned id. Empty definitions are rejected
// before any remote call.
func (r *Reconciler) Bind(ctx context.Context, def domain.Definition) (domain.Definition, error) {
	if def.Status != domain.Unbound {
		return def, domain.ErrValidation("file %s is already %s", def.FileName, def.Status)
	}
	if strings.TrimSpace(def.SQL) == "" {
		return def, domain.ErrValidation("file %s is empty", def.FileName)
	}

	r.logger.Info("creating query", "file", def.FileName, "name", def.DisplayName)
	id, err := r.svc.CreateQuery(ctx, domain.CreateQueryRequest{
		Name:      def.DisplayName,
		SQL:       def.SQL,
		IsPrivate: false,
	})
	if err != nil {
		return def, fmt.Errorf("create query from %s: %w", def.FileName, err)
	}

	bound, err := r.scanner.Rename(def, id)
	if err != nil {
		// The remote query exists but the file still looks new; a rerun
		// would create a second one.
		r.logger.Error("created query but could not rename file",
			"query_id", id, "file", def.FileName, "error", err)
		return def, fmt.Errorf("bind %s to query %s: %w", def.FileName, id, err)
	}
	r.logger.Info("created query", "query_id", id, "file", bound.FileName)
	return bound, nil
}

// CreateNew binds every unbound definition in the queries directory and
// appends the new ids to the manifest. The manifest is written only when at
// least one query was created.
func (r *Reconciler) CreateNew(ctx context.Context) (*CreateReport, error) {
	m, err := manifest.Load(r.manifestPath)
	if err != nil {
		return nil, err
	}
	if m.Dropped > 0 {
		r.logger.Warn("ignoring null or invalid manifest entries", "file", r.manifestPath, "count", m.Dropped)
	}

	inv, err := r.scanner.Scan()
	if err != nil {
		return nil, err
	}

	report := &CreateReport{Manifest: m.IDs, Found: len(inv.Unbound)}
	for _, def := range inv.Empty {
		report.Empty = append(report.Empty, def.FileName)
	}

	for _, def := range inv.Unbound {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		bound, err := r.Bind(ctx, def)
		if err != nil {
			r.logger.Error("skipping file", "file", def.FileName, "error", err)
			report.Failed = append(report.Failed, def.FileName)
			continue
		}
		report.Created = append(report.Created, bound.ID)
		report.Bound = append(report.Bound, bound.FileName)
	}

	if len(report.Created) == 0 {
		return report, nil
	}
	merged := manifest.Merge(m.IDs, report.Created)
	if err := m.Save(merged); err != nil {
		return report, err
	}
	report.Manifest = merged
	r.logger.Info("updated manifest", "file", r.manifestPath, "added", len(report.Created), "total", len(merged))
	return report, nil
}

// ManifestIDs returns the normalised ids currently in the manifest.
func (r *Reconciler) ManifestIDs() ([]domain.QueryID, error) {
	m, err := manifest.Load(r.manifestPath)
	if err != nil {
		return nil, err
	}
	return m.IDs, nil
}

// Update pushes the local SQL of each id's bound file to the remote query.
// Ids without a local file are warned about and skipped. Only bound files
// are listed; their SQL is read per id.
func (r *Reconciler) Update(ctx context.Context, ids []domain.QueryID) (*UpdateReport, error) {
	inv, err := r.scanner.ScanBound()
	if err != nil {
		return nil, err
	}

	report := &UpdateReport{}
	for _, id := range ids {
		if !id.Valid() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		def, ok := inv.ByID(id)
		if !ok {
			r.logger.Warn("no local file found for query id", "query_id", id)
			report.Missing = append(report.Missing, id)
			continue
		}
		if err := r.updateOne(ctx, def); err != nil {
			var emptyErr *domain.ValidationError
			if errors.As(err, &emptyErr) {
				r.logger.Warn("skipping update", "query_id", id, "file", def.FileName, "error", err)
				report.Empty = append(report.Empty, id)
				continue
			}
			var notFound *domain.NotFoundError
			if errors.As(err, &notFound) {
				r.logger.Warn("remote query not found; check the id in the filename", "query_id", id, "file", def.FileName)
				report.Failed = append(report.Failed, id)
				continue
			}
			r.logger.Error("failed to update query", "query_id", id, "file", def.FileName, "error", err)
			report.Failed = append(report.Failed, id)
			continue
		}
		report.Updated = append(report.Updated, id)
	}
	return report, nil
}

func (r *Reconciler) updateOne(ctx context.Context, def domain.Definition) error {
	sql, err := definition.ReadSQL(def.Path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(sql) == "" {
		return domain.ErrValidation("file %s is empty", def.FileName)
	}

	q, err := r.svc.GetQuery(ctx, def.ID)
	if err != nil {
		return fmt.Errorf("fetch query: %w", err)
	}
	r.logger.Info("updating query", "query_id", def.ID, "name", q.Name, "file", def.FileName)

	if err := r.svc.UpdateQuery(ctx, def.ID, sql); err != nil {
		return fmt.Errorf("update query: %w", err)
	}
	return nil
}
