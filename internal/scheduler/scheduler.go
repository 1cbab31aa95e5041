// Package scheduler runs the periodic refresh loops of every source family.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bilgisen/nnews/internal/news"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownJob is returned by Trigger for a name with no job.
var ErrUnknownJob = errors.New("unknown job")

// Job is one independently scheduled refresh loop.
type Job struct {
	Name string
	// Warmup delays the first run after start.
	Warmup   time.Duration
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs every job in its own loop. A slow or failing job never
// delays the others.
type Scheduler struct {
	jobs   map[string]Job
	order  []string
	budget time.Duration
	log    zerolog.Logger

	mu      sync.Mutex
	baseCtx context.Context
	wg      sync.WaitGroup
}

// New creates a scheduler. budget bounds every single run.
func New(budget time.Duration, log zerolog.Logger, jobs ...Job) *Scheduler {
	s := &Scheduler{
		jobs:    make(map[string]Job, len(jobs)),
		budget:  budget,
		log:     log,
		baseCtx: context.Background(),
	}
	for _, j := range jobs {
		s.jobs[j.Name] = j
		s.order = append(s.order, j.Name)
	}
	return s
}

// Run starts all loops and blocks until ctx is cancelled and every in-flight
// run has returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range s.order {
		job := s.jobs[name]
		g.Go(func() error {
			s.loop(gctx, job)
			return nil
		})
	}

	s.log.Info().Strs("jobs", s.order).Msg("Scheduler started")
	err := g.Wait()
	s.wg.Wait()
	s.log.Info().Msg("Scheduler stopped")
	return err
}

// Trigger starts an immediate run of the named job in the background.
func (s *Scheduler) Trigger(name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}

	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("scheduler stopped: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runOnce(ctx, job)
	}()
	return nil
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	if job.Warmup > 0 {
		t := time.NewTimer(job.Warmup)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}

	s.runOnce(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

// runOnce executes one run under the cycle budget. Errors and panics are
// logged and never leave this function.
func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	log := s.log.With().Str("job", job.Name).Logger()

	if ctx.Err() != nil {
		return
	}
	if s.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.budget)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Refresh panicked, keeping previous snapshot")
		}
	}()

	start := time.Now()
	err := job.Run(ctx)
	switch {
	case err == nil:
		log.Debug().Dur("duration", time.Since(start)).Msg("Refresh finished")
	case errors.Is(err, news.ErrCycleInProgress):
		log.Debug().Msg("Refresh skipped, previous run still in progress")
	default:
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Refresh failed, keeping previous snapshot")
	}
}
