package store

import (
	"context"

	"lab-dashboard/models"
)

// Backend is one place documents are persisted. Backends hold full copies of
// documents; the Repository decides which copy wins.
type Backend interface {
	Name() string
	List(ctx context.Context) ([]models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	Put(ctx context.Context, doc models.Document) error
	Reset(ctx context.Context) error
}

// VersionStore is the corpus version counter. Every write bumps it; readers
// compare it against the version they cached.
type VersionStore interface {
	Current(ctx context.Context) (int64, error)
	Bump(ctx context.Context) (int64, error)
}
