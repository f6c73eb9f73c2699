package model

import "time"

// CookieSource records where a cookie bundle came from.
type CookieSource string

const (
	// CookieSourceEnv means the bundle was materialized from environment
	// content at process start
	CookieSourceEnv CookieSource = "environment"

	// CookieSourceUpload means the bundle was uploaded by a user
	CookieSourceUpload CookieSource = "upload"
)

// CookieBundle is a stored authentication-cookie artifact used to make fetch
// requests appear as an authenticated browser session. The Working flag and
// Status text are only meaningful for the selection pass that probed them.
type CookieBundle struct {
	Path      string
	Source    CookieSource
	Uploader  string
	CreatedAt time.Time
	Working   bool
	Status    string
}

// Age returns the bundle's age relative to now. Environment-sourced bundles
// always report zero so they rank as freshest.
func (b *CookieBundle) Age(now time.Time) time.Duration {
	if b.Source == CookieSourceEnv {
		return 0
	}
	age := now.Sub(b.CreatedAt)
	if age < 0 {
		return 0
	}
	return age
}
