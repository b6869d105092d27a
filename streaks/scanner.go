package streaks

import (
	"context"
	"log"

	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"

	"github.com/mldchan/fedistreaks/db"
)

// DefaultWorkers bounds how many followers are evaluated at once.
const DefaultWorkers = 16

// Scanner runs one poll cycle: evaluate every follower on a bounded worker
// pool, then sweep stale rows the cycle did not visit.
type Scanner struct {
	store   *db.Store
	api     SocialAPI
	clock   clock.Clock
	report  Reporter
	workers int
	eval    *Evaluator
}

func NewScanner(store *db.Store, api SocialAPI, clk clock.Clock, report Reporter, workers int) *Scanner {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Scanner{
		store:   store,
		api:     api,
		clock:   clk,
		report:  report,
		workers: workers,
		eval:    NewEvaluator(store, api, clk),
	}
}

// Run scans all current followers. A failed evaluation is reported and the
// cycle moves on; only failures outside the per-follower work abort the
// cycle. The worker pool is joined before the housekeeping sweep so scoped
// expiries get to notify first.
func (s *Scanner) Run(ctx context.Context) error {
	if err := s.store.EnsureSchema(ctx); err != nil {
		return err
	}

	self, err := s.api.Self(ctx)
	if err != nil {
		return err
	}

	followers, err := s.api.AllFollowers(ctx, self.ID)
	if err != nil {
		return err
	}

	log.Printf("Checking %d followers", len(followers))

	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, follower := range followers {
		follower := follower
		g.Go(func() error {
			if err := s.eval.CheckUser(ctx, follower.FollowerID); err != nil {
				log.Printf("Checking follower %s failed: %v", follower.FollowerID, err)
				s.report.CaptureException(err)
			}
			return nil
		})
	}

	g.Wait()

	changes, err := s.store.ExpireStale(ctx, ExpireThresholdDays, s.clock.Now())
	if err != nil {
		return err
	}

	log.Printf("Updated DB for older users, changes: %d", changes)

	return nil
}
