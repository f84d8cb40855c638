package services

import (
	"context"
	"errors"
	"time"

	"lab-dashboard/internal/ai"
	"lab-dashboard/internal/logger"

	"github.com/go-co-op/gocron"
)

const vectorEnsureTag = "vector-ensure"

// VectorEnsurer runs one gradual ensure pass
type VectorEnsurer interface {
	EnsureVectors(ctx context.Context, force bool, limit int) (int, error)
}

// Scheduler runs the periodic gradual vector ensure so documents that were
// never vectorized (seed entries, failed uploads) catch up over time
type Scheduler struct {
	scheduler *gocron.Scheduler
	ensurer   VectorEnsurer
	batch     int
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewScheduler(ensurer VectorEnsurer, batch int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Scheduler{
		scheduler: s,
		ensurer:   ensurer,
		batch:     batch,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// ScheduleEnsure registers the ensure job; passes never overlap
func (s *Scheduler) ScheduleEnsure(interval time.Duration) error {
	_, err := s.scheduler.Every(interval).SingletonMode().Tag(vectorEnsureTag).Do(s.RunOnce)
	return err
}

// RunOnce runs a single ensure pass over at most batch documents
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Minute)
	defer cancel()

	n, err := s.ensurer.EnsureVectors(ctx, false, s.batch)
	switch {
	case errors.Is(err, ai.ErrMissingCredentials):
		logger.Debug("Skipping vector ensure, no embedding credentials")
	case err != nil:
		logger.Warn("Vector ensure pass failed", "error", err)
	case n > 0:
		logger.Info("Vector ensure pass indexed documents", "indexed", n)
	}
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.cancel()
}

// Jobs returns the scheduled jobs
func (s *Scheduler) Jobs() []*gocron.Job {
	return s.scheduler.Jobs()
}
