package streaks

import (
	"context"
	"sync"
	"time"

	"github.com/mldchan/fedistreaks/misskey"
)

// fakeAPI is an in-memory SocialAPI for exercising the streak tasks without
// a Misskey instance.
type fakeAPI struct {
	mu sync.Mutex

	self      *misskey.User
	users     map[string]*misskey.User
	followers []misskey.Follower
	notes     map[string][]misskey.Note

	showErr   map[string]error
	followErr map[string]error

	sent     []string
	sentTo   []string
	followed []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		self:      &misskey.User{ID: "self1", Username: "streakbot"},
		users:     map[string]*misskey.User{},
		notes:     map[string][]misskey.Note{},
		showErr:   map[string]error{},
		followErr: map[string]error{},
	}
}

func (f *fakeAPI) Self(ctx context.Context) (*misskey.User, error) {
	return f.self, nil
}

func (f *fakeAPI) ShowUser(ctx context.Context, userID string) (*misskey.User, error) {
	if err := f.showErr[userID]; err != nil {
		return nil, err
	}

	return f.users[userID], nil
}

func (f *fakeAPI) AllFollowers(ctx context.Context, userID string) ([]misskey.Follower, error) {
	return f.followers, nil
}

func (f *fakeAPI) NotesSince(ctx context.Context, userID string, since time.Time) ([]misskey.Note, error) {
	return f.notes[userID], nil
}

func (f *fakeAPI) Follow(ctx context.Context, userID string) error {
	if err := f.followErr[userID]; err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.followed = append(f.followed, userID)

	return nil
}

func (f *fakeAPI) SendPrivateNote(ctx context.Context, text, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	f.sentTo = append(f.sentTo, userID)

	return nil
}

// recordingReporter collects everything the tasks would send to monitoring.
type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) CaptureException(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}
