package model

import "time"

// Session represents one download request's isolated workspace. The path is
// unique per session and owned by the request that created it until the
// request releases it to the retention sweeper.
type Session struct {
	ID        string
	UserLabel string
	Path      string
	CreatedAt time.Time
}

// Age returns how long ago the session was created.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}
