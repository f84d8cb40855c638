package services

import (
	"context"
	"testing"
	"time"

	"lab-dashboard/internal/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ensureRecorder struct {
	limits []int
	err    error
}

func (r *ensureRecorder) EnsureVectors(_ context.Context, force bool, limit int) (int, error) {
	r.limits = append(r.limits, limit)
	return 1, r.err
}

func TestSchedulerRunOnceUsesBatch(t *testing.T) {
	rec := &ensureRecorder{}
	s := NewScheduler(rec, 5)
	defer s.Stop()

	s.RunOnce()
	rec.err = ai.ErrMissingCredentials
	s.RunOnce()

	assert.Equal(t, []int{5, 5}, rec.limits)
}

func TestSchedulerRegistersUniqueJob(t *testing.T) {
	s := NewScheduler(&ensureRecorder{}, 5)
	defer s.Stop()

	require.NoError(t, s.ScheduleEnsure(time.Hour))
	assert.Error(t, s.ScheduleEnsure(time.Hour))
	require.Len(t, s.Jobs(), 1)
	assert.Equal(t, []string{vectorEnsureTag}, s.Jobs()[0].Tags())
}
