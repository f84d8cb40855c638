package corpus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"lab-dashboard/internal/logger"
	"lab-dashboard/internal/telemetry"
	"lab-dashboard/models"
)

// Source produces the full corpus
type Source interface {
	Load(ctx context.Context) ([]models.Document, error)
}

// VersionReader reads the shared corpus version counter
type VersionReader interface {
	Version(ctx context.Context) (int64, error)
}

// Cache holds the corpus in process. A cached copy is served while it is
// younger than the TTL and the shared version still equals the version read
// just before it was filled. When the version cannot be read, the TTL alone
// decides. Concurrent readers that both see a stale copy may both reload.
type Cache struct {
	source   Source
	versions VersionReader
	ttl      time.Duration
	now      func() time.Time
	metrics  *telemetry.Metrics

	mu       sync.Mutex
	docs     []models.Document
	filled   bool
	filledAt time.Time
	version  int64
	hasVer   bool

	reloads atomic.Int64
}

type Option func(*Cache)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// NewCache builds a cache over source. versions may be nil.
func NewCache(source Source, versions VersionReader, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		source:   source,
		versions: versions,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Documents returns the corpus, reloading it when the cached copy is missing,
// expired or outdated, or when bypass is set.
func (c *Cache) Documents(ctx context.Context, bypass bool) ([]models.Document, error) {
	c.mu.Lock()
	docs, filled, filledAt, version, hasVer := c.docs, c.filled, c.filledAt, c.version, c.hasVer
	c.mu.Unlock()

	reason := "bypass"
	if !bypass {
		switch {
		case !filled:
			reason = "empty"
		case c.now().Sub(filledAt) >= c.ttl:
			reason = "ttl"
		default:
			current, ok := c.readVersion(ctx)
			if !ok || !hasVer || current == version {
				return docs, nil
			}
			reason = "version"
		}
	}

	return c.reload(ctx, reason, docs, filled)
}

func (c *Cache) reload(ctx context.Context, reason string, stale []models.Document, filled bool) ([]models.Document, error) {
	// version first, so a write landing during the load makes the next read reload again
	version, hasVer := c.readVersion(ctx)

	docs, err := c.source.Load(ctx)
	if err != nil {
		if filled {
			logger.Warn("Corpus reload failed, serving cached copy", "reason", reason, "error", err)
			return stale, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.docs = docs
	c.filled = true
	c.filledAt = c.now()
	c.version = version
	c.hasVer = hasVer
	c.mu.Unlock()

	c.reloads.Add(1)
	c.metrics.RecordCorpusReload(ctx, reason)
	logger.Debug("Corpus reloaded", "reason", reason, "documents", len(docs), "version", version)
	return docs, nil
}

func (c *Cache) readVersion(ctx context.Context) (int64, bool) {
	if c.versions == nil {
		return 0, false
	}
	v, err := c.versions.Version(ctx)
	if err != nil {
		logger.Warn("Reading corpus version failed, relying on TTL", "error", err)
		return 0, false
	}
	return v, true
}

// Invalidate drops the cached copy so the next read reloads
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.docs = nil
	c.filled = false
	c.mu.Unlock()
}

// Reloads counts how many times the corpus has been loaded
func (c *Cache) Reloads() int64 {
	return c.reloads.Load()
}
