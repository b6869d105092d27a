// Package streaks tracks daily posting streaks for the account's followers.
package streaks

import (
	"context"
	"time"

	"github.com/mldchan/fedistreaks/misskey"
)

// ExpireThresholdDays is the gap, in whole days since the last credited note,
// after which a streak resets.
const ExpireThresholdDays = 2

// SocialAPI is the slice of the Misskey API the streak tasks depend on.
type SocialAPI interface {
	Self(ctx context.Context) (*misskey.User, error)
	ShowUser(ctx context.Context, userID string) (*misskey.User, error)
	AllFollowers(ctx context.Context, userID string) ([]misskey.Follower, error)
	NotesSince(ctx context.Context, userID string, since time.Time) ([]misskey.Note, error)
	Follow(ctx context.Context, userID string) error
	SendPrivateNote(ctx context.Context, text, userID string) error
}

// Reporter forwards unexpected errors to the monitoring backend.
type Reporter interface {
	CaptureException(err error)
}
