package corpus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"lab-dashboard/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
func (c *fakeClock) option() Option          { return WithClock(c.Now) }

type fakeVersions struct {
	v   int64
	err error
}

func (f *fakeVersions) Version(context.Context) (int64, error) { return f.v, f.err }

type countingSource struct {
	loads atomic.Int32
	err   error
}

func (s *countingSource) Load(context.Context) ([]models.Document, error) {
	n := s.loads.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return []models.Document{{ID: "doc", Title: "load", Year: int(n)}}, nil
}

func TestCacheServesWithinTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	src := &countingSource{}
	c := NewCache(src, &fakeVersions{v: 1}, time.Minute, clock.option())

	_, err := c.Documents(ctx, false)
	require.NoError(t, err)
	clock.Advance(59 * time.Second)
	docs, err := c.Documents(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, int64(1), c.Reloads())
	assert.Equal(t, 1, docs[0].Year)
}

func TestCacheReloadsAfterTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewCache(&countingSource{}, &fakeVersions{v: 1}, time.Minute, clock.option())

	_, _ = c.Documents(ctx, false)
	clock.Advance(time.Minute)
	docs, err := c.Documents(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, int64(2), c.Reloads())
	assert.Equal(t, 2, docs[0].Year)
}

func TestCacheReloadsOnVersionBump(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	versions := &fakeVersions{v: 1}
	c := NewCache(&countingSource{}, versions, time.Hour, clock.option())

	_, _ = c.Documents(ctx, false)
	versions.v = 2
	_, _ = c.Documents(ctx, false)
	assert.Equal(t, int64(2), c.Reloads())

	// the new version is remembered
	_, _ = c.Documents(ctx, false)
	assert.Equal(t, int64(2), c.Reloads())
}

func TestCacheBypass(t *testing.T) {
	ctx := context.Background()
	c := NewCache(&countingSource{}, &fakeVersions{v: 1}, time.Hour, newFakeClock().option())

	_, _ = c.Documents(ctx, false)
	_, _ = c.Documents(ctx, true)
	_, _ = c.Documents(ctx, false)

	assert.Equal(t, int64(2), c.Reloads())
}

func TestCacheVersionErrorFallsBackToTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	versions := &fakeVersions{v: 1}
	c := NewCache(&countingSource{}, versions, time.Minute, clock.option())

	_, _ = c.Documents(ctx, false)
	versions.err = errors.New("redis down")
	_, _ = c.Documents(ctx, false)
	assert.Equal(t, int64(1), c.Reloads())

	clock.Advance(2 * time.Minute)
	_, _ = c.Documents(ctx, false)
	assert.Equal(t, int64(2), c.Reloads())
}

func TestCacheWithoutVersionReader(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewCache(&countingSource{}, nil, time.Minute, clock.option())

	_, _ = c.Documents(ctx, false)
	_, _ = c.Documents(ctx, false)
	assert.Equal(t, int64(1), c.Reloads())
}

func TestCacheServesStaleCopyWhenReloadFails(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	src := &countingSource{}
	c := NewCache(src, nil, time.Minute, clock.option())

	_, err := c.Documents(ctx, false)
	require.NoError(t, err)

	src.err = errors.New("mongo down")
	clock.Advance(time.Hour)
	docs, err := c.Documents(ctx, false)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, int64(1), c.Reloads())
}

func TestCacheFirstLoadFailure(t *testing.T) {
	c := NewCache(&countingSource{err: errors.New("boom")}, nil, time.Minute)

	_, err := c.Documents(context.Background(), false)
	assert.Error(t, err)
}

func TestCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewCache(&countingSource{}, nil, time.Hour, newFakeClock().option())

	_, _ = c.Documents(ctx, false)
	c.Invalidate()
	_, _ = c.Documents(ctx, false)

	assert.Equal(t, int64(2), c.Reloads())
}
