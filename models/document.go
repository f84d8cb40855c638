package models

import (
	"time"
)

// DocumentType classifies a corpus entry by what kind of writing it is
type DocumentType string

const (
	TypeThesis   DocumentType = "thesis"
	TypePaper    DocumentType = "paper"
	TypeDocument DocumentType = "document"
)

// DocumentStatus is the ingestion lifecycle state
type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusError      DocumentStatus = "error"
)

// Document sources
const (
	SourceSeed   = "seed"
	SourceUpload = "upload"
)

// Document is a thesis, paper or note in the lab corpus
type Document struct {
	ID           string         `bson:"_id" json:"id"`
	Name         string         `bson:"name" json:"name"`
	Title        string         `bson:"title" json:"title"`
	Type         DocumentType   `bson:"type" json:"type"`
	Content      string         `bson:"content,omitempty" json:"content,omitempty"`
	Author       string         `bson:"author,omitempty" json:"author,omitempty"`
	Year         int            `bson:"year,omitempty" json:"year,omitempty"`
	Status       DocumentStatus `bson:"status" json:"status"`
	UploadedAt   time.Time      `bson:"uploaded_at" json:"uploadedAt"`
	Source       string         `bson:"source,omitempty" json:"source,omitempty"`
	Pages        int            `bson:"pages,omitempty" json:"pages,omitempty"`
	ErrorMessage string         `bson:"error_message,omitempty" json:"errorMessage,omitempty"`
}

// DisplayTitle returns the title, falling back to the file name
func (d Document) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Name
}

// HasContent reports whether extraction produced usable text
func (d Document) HasContent() bool {
	return d.Content != ""
}

// DocumentPatch is a partial update; nil fields are left untouched
type DocumentPatch struct {
	Title        *string
	Content      *string
	Author       *string
	Status       *DocumentStatus
	Pages        *int
	ErrorMessage *string
}

// DocumentSummary is the list view of a document, without its full text
type DocumentSummary struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Title         string         `json:"title"`
	Type          DocumentType   `json:"type"`
	Author        string         `json:"author,omitempty"`
	Year          int            `json:"year,omitempty"`
	Status        DocumentStatus `json:"status"`
	UploadedAt    time.Time      `json:"uploadedAt"`
	ContentLength int            `json:"contentLength"`
	Vectorized    bool           `json:"vectorized"`
}

// Summary builds the list view of a document
func (d Document) Summary(vectorized bool) DocumentSummary {
	return DocumentSummary{
		ID:            d.ID,
		Name:          d.Name,
		Title:         d.DisplayTitle(),
		Type:          d.Type,
		Author:        d.Author,
		Year:          d.Year,
		Status:        d.Status,
		UploadedAt:    d.UploadedAt,
		ContentLength: len([]rune(d.Content)),
		Vectorized:    vectorized,
	}
}

// VectorChunk is a fixed-length slice of a document's content plus its embedding.
// Idx gives slice order only.
type VectorChunk struct {
	DocID     string    `json:"docId"`
	Idx       int       `json:"idx"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// UploadResponse is returned after a file has been ingested
type UploadResponse struct {
	DocumentID string         `json:"documentId"`
	Name       string         `json:"name"`
	Status     DocumentStatus `json:"status"`
	Author     string         `json:"author,omitempty"`
	Type       DocumentType   `json:"type"`
	Pages      int            `json:"pages,omitempty"`
	Queued     bool           `json:"queued,omitempty"`
	Text       string         `json:"text,omitempty"`
}
