// Package fallback switches a source family between acquisition strategies.
package fallback

import (
	"context"
	"errors"
	"sync"

	"github.com/bilgisen/nnews/internal/models"
	"github.com/rs/zerolog"
)

// State of a Chain.
type State int

const (
	// Degraded uses only the fallback strategy.
	Degraded State = iota
	// PrimaryActive uses the primary strategy, retrying empty results with the secondary.
	PrimaryActive
)

func (s State) String() string {
	if s == PrimaryActive {
		return "primary_active"
	}
	return "degraded"
}

var errNoPrimary = errors.New("no primary strategy configured")

// Strategy is one way of fetching a source.
type Strategy interface {
	Fetch(ctx context.Context, src models.SourceConfig) []models.NewsItem
}

// Options wires the strategies of a Chain. Secondary may be nil.
type Options struct {
	Primary      Strategy
	Secondary    Strategy
	Fallback     Strategy
	PrimaryName  string
	FallbackName string
	// Activate checks that the primary strategy is usable.
	Activate func(ctx context.Context) error
}

// Chain is shared by every source of a family. Once degraded it stays
// degraded until Reinitialize succeeds.
type Chain struct {
	opts Options
	log  zerolog.Logger

	mu    sync.RWMutex
	state State
}

// New returns a degraded chain; call Reinitialize to try the primary strategy.
func New(opts Options, log zerolog.Logger) *Chain {
	return &Chain{opts: opts, log: log, state: Degraded}
}

// Reinitialize re-runs the activation check and sets the state from its result.
func (c *Chain) Reinitialize(ctx context.Context) State {
	var err error
	if c.opts.Activate != nil && c.opts.Primary != nil {
		err = c.opts.Activate(ctx)
	} else {
		err = errNoPrimary
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = Degraded
		c.log.Warn().Err(err).Str("mode", c.opts.FallbackName).Msg("Primary strategy unavailable, using fallback")
		return c.state
	}

	c.state = PrimaryActive
	c.log.Info().Str("mode", c.opts.PrimaryName).Msg("Primary strategy activated")
	return c.state
}

// State returns the current state.
func (c *Chain) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Mode names the strategy currently in use.
func (c *Chain) Mode() string {
	if c.State() == PrimaryActive {
		return c.opts.PrimaryName
	}
	return c.opts.FallbackName
}

// Fetch runs the strategy for the current state. In PrimaryActive an empty
// primary result is retried once with the secondary; if that is empty too the
// chain degrades for every later call.
func (c *Chain) Fetch(ctx context.Context, src models.SourceConfig) []models.NewsItem {
	if c.State() != PrimaryActive {
		return c.opts.Fallback.Fetch(ctx, src)
	}

	if items := c.opts.Primary.Fetch(ctx, src); len(items) > 0 {
		return items
	}

	if c.opts.Secondary != nil {
		c.log.Info().Str("source", src.ID).Msg("Primary strategy returned nothing, trying secondary")
		if items := c.opts.Secondary.Fetch(ctx, src); len(items) > 0 {
			return items
		}
	}

	if ctx.Err() != nil {
		return nil
	}

	c.mu.Lock()
	if c.state == PrimaryActive {
		c.state = Degraded
		c.log.Warn().
			Str("source", src.ID).
			Str("mode", c.opts.FallbackName).
			Msg("Primary strategy produced no items, switching to fallback")
	}
	c.mu.Unlock()

	return nil
}
