package streaks

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"

	streakDB "github.com/mldchan/fedistreaks/db"
	"github.com/mldchan/fedistreaks/misskey"
)

// Tests run with a single worker so the sqlmock expectations stay ordered.
func newScannerWithMock(t *testing.T, api SocialAPI, report Reporter) (*Scanner, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}

	scanner := NewScanner(streakDB.NewStore(db), api, testclock.NewClock(testNow), report, 1)

	return scanner, mock, func() { db.Close() }
}

func expectSchema(mock sqlmock.Sqlmock) {
	mock.ExpectExec("create table if not exists fedistreaks_users").
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func expectStaleSweep(mock sqlmock.Sqlmock, changes int64) {
	mock.ExpectExec(`update fedistreaks_users set start_date = \$1::date, last_note_date = \$1::date`).
		WithArgs(testNow, ExpireThresholdDays).
		WillReturnResult(sqlmock.NewResult(0, changes))
}

func TestScanEvaluatesEveryFollowerThenSweeps(t *testing.T) {
	api := newFakeAPI()
	api.followers = []misskey.Follower{
		{ID: "row1", FollowerID: "u1"},
		{ID: "row2", FollowerID: "u2"},
	}
	api.users["u1"] = &misskey.User{ID: "u1", Username: "poster"}
	api.users["u2"] = &misskey.User{ID: "u2", Username: "quiet"}
	api.notes["u1"] = []misskey.Note{{ID: "n1", CreatedAt: testNow}}

	report := &recordingReporter{}
	scanner, mock, done := newScannerWithMock(t, api, report)
	defer done()

	expectSchema(mock)

	// u1 posted today: fresh record, no notification.
	expectEnsureUser(mock, "@poster")
	mock.ExpectQuery(`select \(last_note_date - start_date\) as days`).
		WithArgs("@poster").
		WillReturnRows(sqlmock.NewRows([]string{"days"}).AddRow(0))
	mock.ExpectExec(`update fedistreaks_users set last_note_date = \$2::date`).
		WithArgs("@poster", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`select \(last_note_date - start_date\) as days`).
		WithArgs("@poster").
		WillReturnRows(sqlmock.NewRows([]string{"days"}).AddRow(0))

	// u2 has no notes and is not stale yet.
	expectEnsureUser(mock, "@quiet")
	mock.ExpectQuery(`select \(\$2::date - start_date\) as days`).
		WithArgs("@quiet", testNow).
		WillReturnRows(sqlmock.NewRows([]string{"days"}).AddRow(0))
	mock.ExpectExec(`update fedistreaks_users set start_date = \$2::date, last_note_date = \$2::date`).
		WithArgs("@quiet", testNow, ExpireThresholdDays).
		WillReturnResult(sqlmock.NewResult(0, 0))

	expectStaleSweep(mock, 0)

	err := scanner.Run(context.Background())

	assert.Nil(t, err)
	assert.Empty(t, api.sent)
	assert.Empty(t, report.errs)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestScanIsolatesPerFollowerFailures(t *testing.T) {
	api := newFakeAPI()
	api.followers = []misskey.Follower{
		{ID: "row1", FollowerID: "u1"},
		{ID: "row2", FollowerID: "u2"},
	}
	api.showErr["u1"] = errors.New("user lookup timed out")
	api.users["u2"] = &misskey.User{ID: "u2", Username: "test"}
	api.notes["u2"] = []misskey.Note{{ID: "n1", CreatedAt: testNow}}

	report := &recordingReporter{}
	scanner, mock, done := newScannerWithMock(t, api, report)
	defer done()

	expectSchema(mock)

	// u1 fails before touching the store; u2 is still evaluated in full.
	expectEnsureUser(mock, "@test")
	mock.ExpectQuery(`select \(last_note_date - start_date\) as days`).
		WithArgs("@test").
		WillReturnRows(sqlmock.NewRows([]string{"days"}).AddRow(4))
	mock.ExpectExec(`update fedistreaks_users set last_note_date = \$2::date`).
		WithArgs("@test", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`select \(last_note_date - start_date\) as days`).
		WithArgs("@test").
		WillReturnRows(sqlmock.NewRows([]string{"days"}).AddRow(5))

	expectStaleSweep(mock, 0)

	err := scanner.Run(context.Background())

	assert.Nil(t, err)
	assert.Len(t, report.errs, 1)
	assert.Equal(t, []string{"@test 5 day streak! :3"}, api.sent)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestScanSweepsEvenWhenThereAreNoFollowers(t *testing.T) {
	api := newFakeAPI()

	report := &recordingReporter{}
	scanner, mock, done := newScannerWithMock(t, api, report)
	defer done()

	expectSchema(mock)
	expectStaleSweep(mock, 2)

	err := scanner.Run(context.Background())

	assert.Nil(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
