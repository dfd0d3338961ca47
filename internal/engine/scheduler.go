package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ndmitriev/giftarb/internal/domain"
	"github.com/ndmitriev/giftarb/internal/service"
)

// Config tunes the polling loop.
type Config struct {
	// DefaultInterval is the sleep between cycles when no user is eligible.
	DefaultInterval time.Duration
	// MaxConcurrentPolls bounds how many users are polled at once. Values
	// below 2 keep polling fully sequential.
	MaxConcurrentPolls int
}

// Engine drives the polling cycles for all users. Each cycle enumerates
// users, polls the active entitled ones, and then sleeps for the longest
// eligible interval so no user is polled faster than they asked for.
type Engine struct {
	cfg       Config
	prefs     *service.PrefService
	listings  domain.ListingSource
	evaluator *Evaluator
	dispatch  *Dispatcher
	messenger domain.Messenger
	now       func() time.Time
	log       *slog.Logger
}

// acquiredUser is one user held under the preference service's per-user lock
// for the duration of a poll.
type acquiredUser struct {
	prefs *domain.UserPreferences
}

// New creates an Engine.
func New(cfg Config, prefs *service.PrefService, listings domain.ListingSource, floors domain.FloorSource, messenger domain.Messenger, log *slog.Logger) *Engine {
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = 60 * time.Second
	}
	log = log.With("component", "engine")
	return &Engine{
		cfg:       cfg,
		prefs:     prefs,
		listings:  listings,
		evaluator: NewEvaluator(floors, log),
		dispatch:  NewDispatcher(messenger, log),
		messenger: messenger,
		now:       time.Now,
		log:       log,
	}
}

// Run executes polling cycles until the context is canceled. Store failures
// abort the run; marketplace and delivery failures only degrade a cycle.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("engine started",
		"default_interval", e.cfg.DefaultInterval,
		"max_concurrent_polls", e.cfg.MaxConcurrentPolls)

	for {
		wait, err := e.runCycle(ctx)
		if err != nil {
			return err
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runCycle polls every eligible user once and returns how long to sleep. The
// sleep is the longest interval among users polled this cycle, decided once
// per cycle, falling back to the default when nobody was eligible.
func (e *Engine) runCycle(ctx context.Context) (time.Duration, error) {
	ids, err := e.prefs.UserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("engine: enumerate users: %w", err)
	}

	maxInterval := 0
	if e.cfg.MaxConcurrentPolls > 1 {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.cfg.MaxConcurrentPolls)
		for _, id := range ids {
			id := id
			g.Go(func() error {
				interval, err := e.pollUser(gctx, id)
				if err != nil {
					return err
				}
				mu.Lock()
				if interval > maxInterval {
					maxInterval = interval
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
	} else {
		for _, id := range ids {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			interval, err := e.pollUser(ctx, id)
			if err != nil {
				return 0, err
			}
			if interval > maxInterval {
				maxInterval = interval
			}
		}
	}

	if maxInterval <= 0 {
		return e.cfg.DefaultInterval, nil
	}
	return time.Duration(maxInterval) * time.Second, nil
}

// pollUser runs one user's cycle and returns their interval in seconds, zero
// when the user was not eligible this cycle.
func (e *Engine) pollUser(ctx context.Context, userID int64) (int, error) {
	prefs, release, err := e.prefs.Acquire(ctx, userID)
	if err != nil {
		return 0, err
	}
	defer release()

	u := &acquiredUser{prefs: prefs}
	eligible, err := e.checkEntitlement(ctx, u)
	if err != nil {
		return 0, err
	}
	if !eligible {
		return 0, nil
	}

	listings, err := e.listings.SearchActiveAuctions(ctx)
	if err != nil {
		e.log.Warn("auction fetch failed", "user_id", userID, "error", err)
		listings = nil
	}

	candidates := e.evaluator.Evaluate(ctx, prefs, listings)
	if sent := e.dispatch.Dispatch(ctx, prefs, candidates); sent > 0 {
		e.log.Info("alerts sent", "user_id", userID, "count", sent, "candidates", len(candidates))
	}
	return prefs.PollInterval, nil
}
