package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mldchan/fedistreaks/models"
)

// ErrNotTracked is returned when a streak is read for a user that has no row
// yet. Callers must EnsureUser first.
var ErrNotTracked = errors.New("user is not tracked")

const schema = `create table if not exists fedistreaks_users
(
    "user"         text not null
        constraint fedistreaks_users_pk
            primary key,
    start_date     date not null,
    last_note_date date not null
);

comment on column fedistreaks_users."user" is 'The ID located in the fediverse.';

comment on constraint fedistreaks_users_pk on fedistreaks_users is 'A username on fedi can''t be changed';

comment on column fedistreaks_users.start_date is 'The date of start of the streak. Set to follow date or current date when one day is missed.';

comment on column fedistreaks_users.last_note_date is 'The date when the user last made a note.';`

// Store persists one StreakRecord per tracked user. Dates are passed in by
// the caller rather than read from the server clock; all day arithmetic stays
// in Postgres, where subtracting two dates yields whole days. A *sql.DB is a
// connection pool, so the Store is safe for concurrent use.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the fedistreaks_users table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := LogAndExec(ctx, s.db, schema)
	return err
}

// EnsureUser inserts a fresh record with both dates set to today. Inserting
// an already-tracked user is a no-op.
func (s *Store) EnsureUser(ctx context.Context, user string, today time.Time) error {
	_, err := LogAndExec(ctx, s.db, `insert into fedistreaks_users("user", start_date, last_note_date) values ($1, $2::date, $2::date) on conflict do nothing`, user, today)
	return err
}

// StreakDays returns last_note_date - start_date for a tracked user.
func (s *Store) StreakDays(ctx context.Context, user string) (int, error) {
	res := LogAndQueryRow(ctx, s.db, `select (last_note_date - start_date) as days from fedistreaks_users where "user" = $1`, user)

	var days int
	if err := res.Scan(&days); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotTracked
		}
		return 0, err
	}

	return days, nil
}

// DaysSinceStart returns today - start_date: the streak length as it stands
// before any expiry reset, which is what an expiry message reports.
func (s *Store) DaysSinceStart(ctx context.Context, user string, today time.Time) (int, error) {
	res := LogAndQueryRow(ctx, s.db, `select ($2::date - start_date) as days from fedistreaks_users where "user" = $1`, user, today)

	var days int
	if err := res.Scan(&days); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotTracked
		}
		return 0, err
	}

	return days, nil
}

// ExtendStreak credits today towards the user's streak.
func (s *Store) ExtendStreak(ctx context.Context, user string, today time.Time) (int64, error) {
	res, err := LogAndExec(ctx, s.db, `update fedistreaks_users set last_note_date = $2::date where "user" = $1`, user, today)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// ExpireUser resets one user's streak to today if their gap since the last
// credited day has reached thresholdDays. Returns the number of rows changed
// (0 when the user is not stale).
func (s *Store) ExpireUser(ctx context.Context, user string, thresholdDays int, today time.Time) (int64, error) {
	res, err := LogAndExec(ctx, s.db, `update fedistreaks_users set start_date = $2::date, last_note_date = $2::date where "user" = $1 and ($2::date - last_note_date) >= $3`, user, today, thresholdDays)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// ExpireStale resets every stale row in the table. Run once per scan cycle as
// housekeeping for rows no longer visited by the scanner, after the scoped
// per-user expiries have had their chance to notify.
func (s *Store) ExpireStale(ctx context.Context, thresholdDays int, today time.Time) (int64, error) {
	res, err := LogAndExec(ctx, s.db, `update fedistreaks_users set start_date = $1::date, last_note_date = $1::date where ($1::date - last_note_date) >= $2`, today, thresholdDays)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// TrackedUsers counts all rows, including users who have since unfollowed.
func (s *Store) TrackedUsers(ctx context.Context) (int, error) {
	res := LogAndQueryRow(ctx, s.db, `select count(*) from fedistreaks_users`)

	var count int
	if err := res.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// Leaders returns the longest current streaks, longest first.
func (s *Store) Leaders(ctx context.Context, limit int) ([]*models.StreakRecord, error) {
	res, err := LogAndQuery(ctx, s.db, `select "user", start_date, last_note_date from fedistreaks_users order by (last_note_date - start_date) desc limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	var records []*models.StreakRecord
	for res.Next() {
		var record = new(models.StreakRecord)
		if err := res.Scan(&record.User, &record.StartDate, &record.LastNoteDate); err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, res.Err()
}
