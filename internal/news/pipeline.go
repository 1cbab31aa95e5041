package news

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bilgisen/nnews/internal/cache"
	"github.com/bilgisen/nnews/internal/config"
	"github.com/bilgisen/nnews/internal/feed"
	"github.com/bilgisen/nnews/internal/models"
	"github.com/bilgisen/nnews/internal/sources"
	"github.com/rs/zerolog"
)

// ErrCycleInProgress is returned when a refresh of the same family is already running.
var ErrCycleInProgress = errors.New("refresh already in progress")

// FamilySpec is the aggregation policy of a source family.
type FamilySpec struct {
	Policy   feed.DedupPolicy
	MaxItems int
}

// Families lists the built-in family policies.
var Families = map[string]FamilySpec{
	config.FamilyRSS:      {Policy: feed.DedupByURL, MaxItems: 100},
	config.FamilyTelegram: {Policy: feed.DedupByURLOrDescription, MaxItems: 50},
	config.FamilyNational: {Policy: feed.DedupByTitle, MaxItems: 100},
}

// Pipeline refreshes one family: it calls the adapter for every source in
// priority order, aggregates the results and replaces the family snapshot.
type Pipeline struct {
	family    string
	sources   []models.SourceConfig
	adapter   sources.Adapter
	processor *feed.Processor
	delay     time.Duration
	store     *cache.Store
	log       zerolog.Logger
	now       func() time.Time

	running sync.Mutex
}

// PipelineConfig wires a Pipeline.
type PipelineConfig struct {
	Family  string
	Sources []models.SourceConfig
	Adapter sources.Adapter
	Spec    FamilySpec
	// Delay is the pause between two sources of one cycle.
	Delay time.Duration
}

func NewPipeline(cfg PipelineConfig, store *cache.Store, log zerolog.Logger) *Pipeline {
	log = log.With().Str("family", cfg.Family).Logger()
	return &Pipeline{
		family:    cfg.Family,
		sources:   cfg.Sources,
		adapter:   cfg.Adapter,
		processor: feed.NewProcessor(cfg.Spec.Policy, cfg.Spec.MaxItems, log),
		delay:     cfg.Delay,
		store:     store,
		log:       log,
		now:       time.Now,
	}
}

// Family returns the family name.
func (p *Pipeline) Family() string {
	return p.family
}

// Sources returns the sources refreshed by the pipeline.
func (p *Pipeline) Sources() []models.SourceConfig {
	return p.sources
}

// RunCycle performs one refresh. The snapshot is replaced only when every
// source was visited; a cancelled or timed-out cycle leaves the old one live.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	if !p.running.TryLock() {
		return ErrCycleInProgress
	}
	defer p.running.Unlock()

	start := p.now()
	var candidates []models.NewsItem

	for i, src := range p.sources {
		if i > 0 && p.delay > 0 {
			if err := sleep(ctx, p.delay); err != nil {
				return fmt.Errorf("%s refresh interrupted before %s: %w", p.family, src.ID, err)
			}
		}

		items := p.adapter.Fetch(ctx, src)
		p.log.Debug().Str("source", src.ID).Int("items", len(items)).Msg("Source fetched")
		candidates = append(candidates, items...)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s refresh interrupted: %w", p.family, err)
	}

	snap := p.processor.Aggregate(candidates, p.now())
	p.store.Replace(p.family, snap)

	p.log.Info().
		Int("sources", len(p.sources)).
		Int("candidates", len(candidates)).
		Int("cached", len(snap.Items)).
		Dur("duration", p.now().Sub(start)).
		Msg("Refresh complete")

	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
