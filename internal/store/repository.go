package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"lab-dashboard/internal/logger"
	"lab-dashboard/models"

	"github.com/google/uuid"
)

// DocumentRepository is the single storage capability handed to ingestion,
// retrieval and the routes.
type DocumentRepository interface {
	List(ctx context.Context) ([]models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	UpsertByName(ctx context.Context, name string, docType models.DocumentType) (*models.Document, error)
	Update(ctx context.Context, id string, patch models.DocumentPatch) (*models.Document, error)
	Reset(ctx context.Context) error
	Version(ctx context.Context) (int64, error)
}

// Repository fans writes out to every backend and merges reads. Backends are
// consulted in the order given, which is also the tie-break priority on merge.
type Repository struct {
	backends []Backend
	versions VersionStore

	now   func() time.Time
	newID func() string
}

func NewRepository(versions VersionStore, backends ...Backend) *Repository {
	if versions == nil {
		versions = &MemoryVersions{}
	}
	return &Repository{
		backends: backends,
		versions: versions,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Backends lists backend names in priority order
func (r *Repository) Backends() []string {
	names := make([]string, len(r.backends))
	for i, b := range r.backends {
		names[i] = b.Name()
	}
	return names
}

// List merges every reachable backend. It fails only when all of them fail.
func (r *Repository) List(ctx context.Context) ([]models.Document, error) {
	lists := make([][]models.Document, 0, len(r.backends))
	var errs []error

	for _, b := range r.backends {
		docs, err := b.List(ctx)
		if err != nil {
			berr := &BackendError{Backend: b.Name(), Op: "list", Err: err}
			logger.Warn("Document backend read failed", "error", berr)
			errs = append(errs, berr)
			continue
		}
		lists = append(lists, docs)
	}

	if len(r.backends) > 0 && len(errs) == len(r.backends) {
		return nil, errors.Join(errs...)
	}
	return MergeDocuments(lists...), nil
}

// MergeDocuments deduplicates by id. A later copy replaces an earlier one only
// when the earlier copy has no content and the later one does.
func MergeDocuments(lists ...[]models.Document) []models.Document {
	index := make(map[string]int)
	merged := make([]models.Document, 0)

	for _, docs := range lists {
		for _, d := range docs {
			if d.ID == "" {
				continue
			}
			i, seen := index[d.ID]
			if !seen {
				index[d.ID] = len(merged)
				merged = append(merged, d)
				continue
			}
			if !merged[i].HasContent() && d.HasContent() {
				merged[i] = d
			}
		}
	}

	sortByUpload(merged)
	return merged
}

// Get returns the first copy with content, or the first copy found
func (r *Repository) Get(ctx context.Context, id string) (*models.Document, error) {
	var found *models.Document
	var errs []error

	for _, b := range r.backends {
		d, err := b.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			berr := &BackendError{Backend: b.Name(), Op: "get", Err: err}
			logger.Warn("Document backend read failed", "id", id, "error", berr)
			errs = append(errs, berr)
			continue
		}
		if d.HasContent() {
			return d, nil
		}
		if found == nil {
			found = d
		}
	}

	if found != nil {
		return found, nil
	}
	if len(r.backends) > 0 && len(errs) == len(r.backends) {
		return nil, errors.Join(errs...)
	}
	return nil, ErrNotFound
}

// UpsertByName creates a processing document for name, or resets the existing
// document of that name back to processing so a re-upload keeps its id.
func (r *Repository) UpsertByName(ctx context.Context, name string, docType models.DocumentType) (*models.Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("document name is required")
	}

	docs, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var doc models.Document
	found := false
	for _, d := range docs {
		if d.Name == name {
			doc = d
			found = true
			break
		}
	}

	if found {
		doc.Type = docType
		doc.Status = models.StatusProcessing
		doc.Content = ""
		doc.ErrorMessage = ""
		doc.UploadedAt = r.now()
	} else {
		doc = models.Document{
			ID:         r.newID(),
			Name:       name,
			Title:      name,
			Type:       docType,
			Status:     models.StatusProcessing,
			UploadedAt: r.now(),
			Source:     models.SourceUpload,
		}
	}

	if err := r.put(ctx, doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Update applies patch. A status change is only allowed out of processing.
func (r *Repository) Update(ctx context.Context, id string, patch models.DocumentPatch) (*models.Document, error) {
	doc, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil && *patch.Status != doc.Status {
		if doc.Status != models.StatusProcessing || *patch.Status == models.StatusProcessing {
			return nil, ErrInvalidTransition
		}
		doc.Status = *patch.Status
	}
	if patch.Title != nil {
		doc.Title = *patch.Title
	}
	if patch.Content != nil {
		doc.Content = *patch.Content
	}
	if patch.Author != nil {
		doc.Author = *patch.Author
	}
	if patch.Pages != nil {
		doc.Pages = *patch.Pages
	}
	if patch.ErrorMessage != nil {
		doc.ErrorMessage = *patch.ErrorMessage
	}

	if err := r.put(ctx, *doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Reset clears every backend. Backend failures are joined but the version is bumped regardless.
func (r *Repository) Reset(ctx context.Context) error {
	var errs []error
	for _, b := range r.backends {
		if err := b.Reset(ctx); err != nil {
			berr := &BackendError{Backend: b.Name(), Op: "reset", Err: err}
			logger.Error("Document backend reset failed", "error", berr)
			errs = append(errs, berr)
		}
	}
	r.bump(ctx)
	return errors.Join(errs...)
}

func (r *Repository) Version(ctx context.Context) (int64, error) {
	return r.versions.Current(ctx)
}

func (r *Repository) put(ctx context.Context, doc models.Document) error {
	var errs []error
	for _, b := range r.backends {
		if err := b.Put(ctx, doc); err != nil {
			berr := &BackendError{Backend: b.Name(), Op: "put", Err: err}
			logger.Warn("Document backend write failed", "id", doc.ID, "error", berr)
			errs = append(errs, berr)
		}
	}
	if len(r.backends) > 0 && len(errs) == len(r.backends) {
		return errors.Join(errs...)
	}
	r.bump(ctx)
	return nil
}

func (r *Repository) bump(ctx context.Context) {
	if _, err := r.versions.Bump(ctx); err != nil {
		logger.Warn("Corpus version bump failed", "error", err)
	}
}
