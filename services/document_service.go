package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"lab-dashboard/internal/ai"
	"lab-dashboard/internal/logger"
	"lab-dashboard/internal/retrieval"
	"lab-dashboard/internal/store"
	"lab-dashboard/internal/telemetry"
	"lab-dashboard/internal/vectorstore"
	"lab-dashboard/models"
	"lab-dashboard/utils"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/japanese"
)

var ErrUnsupportedFile = errors.New("unsupported file type: upload a PDF or a plain text file")

var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
	".tex": true,
}

// TextExtractor turns PDF bytes into text
type TextExtractor interface {
	ExtractText(ctx context.Context, content []byte) (*ExtractionResult, error)
}

// Corpus is the cached merged view of seed and uploaded documents
type Corpus interface {
	Documents(ctx context.Context, bypass bool) ([]models.Document, error)
	Invalidate()
}

// VectorizeQueue hands vectorization to background workers
type VectorizeQueue interface {
	EnqueueVectorize(ctx context.Context, docID string) error
}

// DocumentService ingests uploads and maintains the document and vector stores
type DocumentService struct {
	repo      store.DocumentRepository
	corpus    Corpus
	extractor TextExtractor
	tables    *retrieval.Tables
	vectors   *vectorstore.Store
	embedder  ai.Embedder
	queue     VectorizeQueue
	metrics   *telemetry.Metrics
}

type DocumentServiceConfig struct {
	Repository store.DocumentRepository
	Corpus     Corpus
	Extractor  TextExtractor
	Tables     *retrieval.Tables
	// Vectors and Embedder are optional; without them uploads are not vectorized
	Vectors  *vectorstore.Store
	Embedder ai.Embedder
	// Queue is optional; without it vectorization runs inline
	Queue   VectorizeQueue
	Metrics *telemetry.Metrics
}

func NewDocumentService(cfg DocumentServiceConfig) *DocumentService {
	if cfg.Extractor == nil {
		cfg.Extractor = NewPDFExtractor()
	}
	if cfg.Tables == nil {
		cfg.Tables = retrieval.DefaultTables()
	}
	return &DocumentService{
		repo:      cfg.Repository,
		corpus:    cfg.Corpus,
		extractor: cfg.Extractor,
		tables:    cfg.Tables,
		vectors:   cfg.Vectors,
		embedder:  cfg.Embedder,
		queue:     cfg.Queue,
		metrics:   cfg.Metrics,
	}
}

type fileKind string

const (
	kindPDF  fileKind = "pdf"
	kindText fileKind = "text"
)

func detectKind(filename string, content []byte) (fileKind, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf" || bytes.HasPrefix(content, []byte("%PDF")):
		return kindPDF, nil
	case textExtensions[ext]:
		return kindText, nil
	}
	return "", ErrUnsupportedFile
}

// Ingest stores an uploaded file: the document is created (or reset) in
// processing state, its text is extracted, and it moves to ready or error.
// Extraction failures are recorded on the document, not returned.
func (s *DocumentService) Ingest(ctx context.Context, filename string, content []byte) (*models.UploadResponse, error) {
	start := time.Now()
	filename = filepath.Base(strings.TrimSpace(filename))

	kind, err := detectKind(filename, content)
	if err != nil {
		return nil, err
	}

	docType := retrieval.InferType(filename, s.tables)
	doc, err := s.repo.UpsertByName(ctx, filename, docType)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	// a re-upload keeps the id; chunks of the previous content must not survive it
	if s.vectors != nil {
		if err := s.vectors.Delete(ctx, doc.ID); err != nil {
			logger.Warn("Dropping stale vectors failed", "document_id", doc.ID, "error", err)
		}
	}

	resp := &models.UploadResponse{
		DocumentID: doc.ID,
		Name:       doc.Name,
		Type:       docType,
	}

	text, pages, err := s.extract(ctx, kind, content)
	if err != nil {
		logger.Warn("Extraction failed", "document_id", doc.ID, "name", filename, "error", err)
		status := models.StatusError
		msg := err.Error()
		if _, uerr := s.repo.Update(ctx, doc.ID, models.DocumentPatch{Status: &status, ErrorMessage: &msg}); uerr != nil {
			logger.Error("Recording extraction failure failed", "document_id", doc.ID, "error", uerr)
		}
		s.corpus.Invalidate()
		s.metrics.RecordIngestion(time.Since(start).Seconds(), string(kind), "error")

		resp.Status = models.StatusError
		return resp, nil
	}

	author := retrieval.InferAuthor(filename, text, s.tables)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))
	status := models.StatusReady
	patch := models.DocumentPatch{
		Title:   &title,
		Content: &text,
		Author:  &author,
		Status:  &status,
	}
	if pages > 0 {
		patch.Pages = &pages
	}
	if _, err := s.repo.Update(ctx, doc.ID, patch); err != nil {
		// the extracted text is still returned to the uploader
		logger.Error("Saving extracted text failed", "document_id", doc.ID, "error", err)
	}
	s.corpus.Invalidate()

	resp.Status = models.StatusReady
	resp.Author = author
	resp.Pages = pages
	resp.Text = text
	resp.Queued = s.scheduleVectorize(ctx, doc.ID, text)

	s.metrics.RecordIngestion(time.Since(start).Seconds(), string(kind), "ready")
	logger.Info("Document ingested",
		"document_id", doc.ID,
		"name", filename,
		"type", docType,
		"author", author,
		"chars", utf8.RuneCountInString(text),
		"queued", resp.Queued)
	return resp, nil
}

func (s *DocumentService) extract(ctx context.Context, kind fileKind, content []byte) (string, int, error) {
	if kind == kindPDF {
		result, err := s.extractor.ExtractText(ctx, content)
		if err != nil {
			return "", 0, err
		}
		text := strings.TrimSpace(result.Text)
		if text == "" {
			return "", result.Pages, ErrNoText
		}
		return text, result.Pages, nil
	}

	text, err := DecodeText(content)
	if err != nil {
		return "", 0, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", 0, ErrNoText
	}
	return text, 0, nil
}

// DecodeText converts a text upload to UTF-8. A BOM or valid UTF-8 is taken
// as is; anything else is read as Shift_JIS, the usual legacy encoding of
// Japanese lab notes.
func DecodeText(content []byte) (string, error) {
	if e, name, certain := charset.DetermineEncoding(content, "text/plain"); certain && name != "utf-8" {
		out, err := e.NewDecoder().Bytes(content)
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", name, err)
		}
		return string(out), nil
	}

	if utf8.Valid(content) {
		return strings.TrimPrefix(string(content), "\ufeff"), nil
	}

	out, err := japanese.ShiftJIS.NewDecoder().Bytes(content)
	if err != nil {
		return "", fmt.Errorf("decode shift_jis: %w", err)
	}
	return string(out), nil
}

// scheduleVectorize is best effort: failures are logged, never returned.
// It reports whether the work was queued for a background worker.
func (s *DocumentService) scheduleVectorize(ctx context.Context, docID, text string) bool {
	if s.vectors == nil {
		return false
	}

	if s.queue != nil {
		err := s.queue.EnqueueVectorize(ctx, docID)
		if err == nil {
			return true
		}
		logger.Warn("Enqueueing vectorization failed, running inline", "document_id", docID, "error", err)
	}

	if s.embedder == nil {
		logger.Debug("No embedder configured, skipping vectorization", "document_id", docID)
		return false
	}
	if _, err := s.vectors.StoreChunks(ctx, docID, text, s.embedder); err != nil {
		logger.Warn("Vectorization failed", "document_id", docID, "error", err)
	}
	return false
}

// Vectorize (re-)computes the chunks of one ready document
func (s *DocumentService) Vectorize(ctx context.Context, docID string) error {
	if s.vectors == nil || s.embedder == nil {
		return ai.ErrMissingCredentials
	}

	doc, err := s.Document(ctx, docID)
	if err != nil {
		return err
	}
	if doc.Status != models.StatusReady || !doc.HasContent() {
		logger.Debug("Skipping vectorization of document without content", "document_id", docID, "status", doc.Status)
		return nil
	}

	n, err := s.vectors.StoreChunks(ctx, doc.ID, doc.Content, s.embedder)
	if err != nil {
		return err
	}
	logger.Info("Document vectorized", "document_id", docID, "chunks", n)
	return nil
}

// EnsureVectors runs one gradual ensure pass over the corpus and returns how
// many documents were newly indexed
func (s *DocumentService) EnsureVectors(ctx context.Context, force bool, limit int) (int, error) {
	if s.vectors == nil || s.embedder == nil {
		return 0, ai.ErrMissingCredentials
	}

	docs, err := s.corpus.Documents(ctx, false)
	if err != nil {
		return 0, err
	}

	report, err := s.vectors.EnsureIndexed(ctx, docs, s.embedder, force, limit)
	if err != nil {
		return report.Indexed, err
	}
	if report.Indexed > 0 || report.Failed > 0 {
		logger.Info("Gradual ensure pass",
			"indexed", report.Indexed,
			"failed", report.Failed,
			"skipped", report.Skipped,
			"force", force)
	}
	return report.Indexed, nil
}

// Document finds a document in the merged corpus, seed entries included
func (s *DocumentService) Document(ctx context.Context, id string) (*models.Document, error) {
	docs, err := s.corpus.Documents(ctx, false)
	if err == nil {
		for i := range docs {
			if docs[i].ID == id {
				return &docs[i], nil
			}
		}
	}
	// uploads newer than the cached copy
	return s.repo.Get(ctx, id)
}

// ListDocuments returns the list view of the corpus, newest upload first
func (s *DocumentService) ListDocuments(ctx context.Context, bypass bool) ([]models.DocumentSummary, error) {
	docs, err := s.corpus.Documents(ctx, bypass)
	if err != nil {
		return nil, err
	}

	indexed := map[string]bool{}
	if s.vectors != nil {
		ids, err := s.vectors.ListIndexedIDs(ctx)
		if err != nil {
			logger.Warn("Listing vector index failed", "error", err)
		}
		for _, id := range ids {
			indexed[id] = true
		}
	}

	out := make([]models.DocumentSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Summary(indexed[d.ID]))
	}
	return out, nil
}

// ResetCorpus clears every uploaded document and all vector chunks. The
// static seed is untouched.
func (s *DocumentService) ResetCorpus(ctx context.Context) error {
	err := s.repo.Reset(ctx)
	if s.vectors != nil {
		if verr := s.vectors.Reset(ctx); verr != nil {
			logger.Warn("Resetting vector store failed", "error", verr)
		}
	}
	s.corpus.Invalidate()

	if err != nil {
		return err
	}
	logger.Info("Corpus reset")
	return nil
}

// DocumentText returns the normalized content of a document, capped at max runes
func (s *DocumentService) DocumentText(ctx context.Context, id string, max int) (string, error) {
	doc, err := s.Document(ctx, id)
	if err != nil {
		return "", err
	}
	return utils.NormalizeText(doc.Content, max), nil
}
