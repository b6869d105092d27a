package streaks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/juju/clock"

	"github.com/mldchan/fedistreaks/db"
)

// Evaluator decides, for one follower at a time, whether their streak grew or
// expired today and messages them when it did.
type Evaluator struct {
	store *db.Store
	api   SocialAPI
	clock clock.Clock
}

func NewEvaluator(store *db.Store, api SocialAPI, clk clock.Clock) *Evaluator {
	return &Evaluator{
		store: store,
		api:   api,
		clock: clk,
	}
}

// CheckUser runs one evaluation for one follower. Each store statement
// commits on its own, so writes completed before a failure stay persisted.
func (e *Evaluator) CheckUser(ctx context.Context, followerID string) error {
	user, err := e.api.ShowUser(ctx, followerID)
	if err != nil {
		return err
	}
	mention := user.Mention()

	log.Printf("Checking user %s", mention)

	now := e.clock.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	notes, err := e.api.NotesSince(ctx, followerID, midnight)
	if err != nil {
		return err
	}

	log.Printf("Today note count: %d", len(notes))

	if err := e.store.EnsureUser(ctx, mention, now); err != nil {
		return err
	}

	if len(notes) > 0 {
		return e.creditToday(ctx, mention, followerID, now)
	}

	return e.expireIfStale(ctx, mention, followerID, now)
}

// creditToday extends the streak and notifies on the first credit of the day.
// Re-reading the day count instead of computing old+1 keeps a record that was
// created this very cycle (old == new == 0) from producing a notification.
func (e *Evaluator) creditToday(ctx context.Context, mention, followerID string, now time.Time) error {
	oldDays, err := e.store.StreakDays(ctx, mention)
	if err != nil {
		return err
	}

	log.Printf("Old days count: %d", oldDays)

	changes, err := e.store.ExtendStreak(ctx, mention, now)
	if err != nil {
		return err
	}

	log.Printf("Updated DB, changes: %d", changes)

	newDays, err := e.store.StreakDays(ctx, mention)
	if err != nil {
		return err
	}

	log.Printf("New days count: %d", newDays)

	if oldDays == newDays {
		return nil
	}

	return e.api.SendPrivateNote(ctx, fmt.Sprintf("%s %d day streak! :3", mention, newDays), followerID)
}

// expireIfStale resets this user's streak when they have not posted for
// ExpireThresholdDays, messaging them the length the streak reached. The day
// count is read before the reset. Expiry is scoped to this user's row; stale
// rows the scanner no longer visits are handled by the per-cycle sweep.
func (e *Evaluator) expireIfStale(ctx context.Context, mention, followerID string, now time.Time) error {
	days, err := e.store.DaysSinceStart(ctx, mention, now)
	if err != nil {
		return err
	}

	log.Printf("Current days count: %d", days)

	changes, err := e.store.ExpireUser(ctx, mention, ExpireThresholdDays, now)
	if err != nil {
		return err
	}

	log.Printf("Updated DB for older user, changes: %d", changes)

	if changes == 0 {
		return nil
	}

	log.Printf("User %s streak expired", mention)

	return e.api.SendPrivateNote(ctx, fmt.Sprintf("%s Your streak of %d days has expired :(", mention, days), followerID)
}
