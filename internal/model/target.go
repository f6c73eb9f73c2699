package model

import (
	"fmt"
	"strings"
)

// Target is one resolved catalog entry to be fetched. Produced by the
// catalog resolver, consumed once by the fetch orchestrator; not persisted
// beyond the request.
type Target struct {
	Title   string
	Artists []string
	Album   string
	URL     string
}

// DisplayName returns "Artist1, Artist2 - Title", or just the title when no
// artist metadata is available.
func (t *Target) DisplayName() string {
	if len(t.Artists) == 0 {
		return t.Title
	}
	return fmt.Sprintf("%s - %s", strings.Join(t.Artists, ", "), t.Title)
}

// SearchQuery returns the query string handed to the downloader for this
// target.
func (t *Target) SearchQuery() string {
	return t.DisplayName()
}
