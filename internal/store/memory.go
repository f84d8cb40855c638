package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"lab-dashboard/models"
)

// MemoryBackend keeps documents in process. It is the first backend consulted
// and the only one available when Redis and MongoDB are both down.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[string]models.Document
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string]models.Document)}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) List(_ context.Context) ([]models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	sortByUpload(out)
	return out, nil
}

func (m *MemoryBackend) Get(_ context.Context, id string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *MemoryBackend) Put(_ context.Context, doc models.Document) error {
	m.mu.Lock()
	m.docs[doc.ID] = doc
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Reset(_ context.Context) error {
	m.mu.Lock()
	m.docs = make(map[string]models.Document)
	m.mu.Unlock()
	return nil
}

// MemoryVersions is an in-process version counter
type MemoryVersions struct {
	v atomic.Int64
}

func (m *MemoryVersions) Current(_ context.Context) (int64, error) {
	return m.v.Load(), nil
}

func (m *MemoryVersions) Bump(_ context.Context) (int64, error) {
	return m.v.Add(1), nil
}

// sortByUpload orders newest first; ties fall back to id so output is stable
func sortByUpload(docs []models.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].UploadedAt.After(docs[j].UploadedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}
