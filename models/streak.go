package models

import "time"

// StreakRecord is one row of fedistreaks_users. Users are keyed by their
// fediverse mention (@user or @user@host), which never changes.
type StreakRecord struct {
	User         string    `json:"user"`
	StartDate    time.Time `json:"startDate"`
	LastNoteDate time.Time `json:"lastNoteDate"`
}

// Days is the current streak length: 0 on the first credited day.
func (r *StreakRecord) Days() int {
	return int(r.LastNoteDate.Sub(r.StartDate).Hours() / 24)
}
