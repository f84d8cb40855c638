package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout is the default timeout for storage operations
	DefaultTimeout = 10 * time.Second

	// LongTimeout covers a full chat turn: retrieval, embeddings and completion
	LongTimeout = 90 * time.Second

	// IngestTimeout covers extraction plus vectorization of one upload
	IngestTimeout = 5 * time.Minute
)

// WithTimeout creates a context with default timeout
func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

// WithLongTimeout creates a context for chat and summarization requests
func WithLongTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, LongTimeout)
}

// WithIngestTimeout creates a context for document ingestion
func WithIngestTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, IngestTimeout)
}
