package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"lab-dashboard/internal/logger"
	"lab-dashboard/internal/store"
	"lab-dashboard/models"
)

// DocumentLister is the read side of the document repository
type DocumentLister interface {
	List(ctx context.Context) ([]models.Document, error)
}

// Loader merges the static seed corpus with uploaded documents
type Loader struct {
	seed []models.Document
	repo DocumentLister
}

func NewLoader(seed []models.Document, repo DocumentLister) *Loader {
	return &Loader{seed: seed, repo: repo}
}

// Load never loses the seed: a repository failure is logged and the seed is
// served alone.
func (l *Loader) Load(ctx context.Context) ([]models.Document, error) {
	var uploads []models.Document
	if l.repo != nil {
		docs, err := l.repo.List(ctx)
		if err != nil {
			logger.Warn("Listing uploaded documents failed, serving seed corpus only", "error", err)
		} else {
			uploads = docs
		}
	}
	return store.MergeDocuments(uploads, l.seed), nil
}

func (l *Loader) Seed() []models.Document {
	return l.seed
}

type seedEntry struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Year    int    `json:"year"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// LoadSeed reads the static corpus. An empty path or a missing file is not an
// error; the dashboard then starts with uploads only.
func LoadSeed(path string) ([]models.Document, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Seed corpus file not found", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) ([]models.Document, error) {
	var entries []seedEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse seed corpus: %w", err)
	}

	epoch := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := make([]models.Document, 0, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.ID) == "" {
			return nil, fmt.Errorf("seed entry %d has no id", i)
		}
		docType := models.DocumentType(e.Type)
		switch docType {
		case models.TypeThesis, models.TypePaper, models.TypeDocument:
		default:
			docType = models.TypeDocument
		}
		uploadedAt := epoch
		if e.Year > 0 {
			uploadedAt = time.Date(e.Year, 4, 1, 0, 0, 0, 0, time.UTC)
		}
		docs = append(docs, models.Document{
			ID:         e.ID,
			Name:       e.Title,
			Title:      e.Title,
			Type:       docType,
			Content:    e.Content,
			Author:     e.Author,
			Year:       e.Year,
			Status:     models.StatusReady,
			UploadedAt: uploadedAt,
			Source:     models.SourceSeed,
		})
	}
	return docs, nil
}
