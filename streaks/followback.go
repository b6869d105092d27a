package streaks

import (
	"context"
	"log"

	"github.com/mldchan/fedistreaks/misskey"
)

// FollowBack follows every current follower back.
type FollowBack struct {
	api    SocialAPI
	report Reporter
}

func NewFollowBack(api SocialAPI, report Reporter) *FollowBack {
	return &FollowBack{
		api:    api,
		report: report,
	}
}

// Run follows each follower back. API rejections (already following, blocked)
// are swallowed per follower; any other failure is reported and ends the
// cycle's remaining attempts.
func (f *FollowBack) Run(ctx context.Context) error {
	self, err := f.api.Self(ctx)
	if err != nil {
		f.report.CaptureException(err)
		return err
	}

	followers, err := f.api.AllFollowers(ctx, self.ID)
	if err != nil {
		f.report.CaptureException(err)
		return err
	}

	for _, follower := range followers {
		if err := f.api.Follow(ctx, follower.FollowerID); err != nil {
			if misskey.IsAPIError(err) {
				continue
			}

			f.report.CaptureException(err)
			return err
		}

		log.Printf("Followed back %s", follower.FollowerID)
	}

	return nil
}
