package resolve

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/zmb3/spotify/v2"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// fakeCatalogResolver wires the resolver to a canned-response transport so
// no network traffic happens.
func fakeCatalogResolver(respond func(*http.Request) (*http.Response, error)) *SpotifyResolver {
	client := &http.Client{Transport: roundTripFunc(respond)}
	return &SpotifyResolver{client: spotify.New(client)}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		input        string
		expectedKind EntryKind
		expectedID   string
		expectErr    bool
	}{
		{"https://open.spotify.com/track/4jTrKMoc44RYZsoFsIlQev", KindTrack, "4jTrKMoc44RYZsoFsIlQev", false},
		{"https://open.spotify.com/track/abc?si=xyz", KindTrack, "abc", false},
		{"https://open.spotify.com/intl-de/track/abc", KindTrack, "abc", false},
		{"https://open.spotify.com/album/def", KindAlbum, "def", false},
		{"https://open.spotify.com/playlist/ghi", KindPlaylist, "ghi", false},
		{"spotify:track:jkl", KindTrack, "jkl", false},
		{"spotify:album:mno", KindAlbum, "mno", false},
		{"https://open.spotify.com/artist/pqr", "", "", true},
		{"https://example.com/watch?v=1", "", "", true},
		{"not a url at all", "", "", true},
		{"", "", "", true},
	}

	for _, test := range tests {
		kind, id, err := ParseURL(test.input)
		if test.expectErr {
			if err == nil {
				t.Errorf("ParseURL(%q) expected error, got kind=%s id=%s", test.input, kind, id)
			}
			if err != nil && !errors.Is(err, ErrUnsupportedURL) {
				t.Errorf("ParseURL(%q) expected ErrUnsupportedURL, got %v", test.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseURL(%q) unexpected error: %v", test.input, err)
			continue
		}
		if kind != test.expectedKind || id != test.expectedID {
			t.Errorf("ParseURL(%q) = (%s, %s), expected (%s, %s)",
				test.input, kind, id, test.expectedKind, test.expectedID)
		}
	}
}

func TestResolveAlbum_FollowsAllPages(t *testing.T) {
	firstPage := `{"id":"alb1","name":"Album X","tracks":{
		"items":[
			{"name":"Song A","artists":[{"name":"Artist"}]},
			{"name":"Song B","artists":[{"name":"Artist"}]}],
		"limit":2,"offset":0,"total":3,
		"next":"https://api.spotify.com/v1/albums/alb1/tracks?offset=2&limit=2"}}`
	secondPage := `{"items":[{"name":"Song C","artists":[{"name":"Artist"}]}],
		"limit":2,"offset":2,"total":3,"next":null}`

	resolver := fakeCatalogResolver(func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/tracks") {
			return jsonResponse(secondPage), nil
		}
		return jsonResponse(firstPage), nil
	})

	targets, err := resolver.Resolve(context.Background(), "https://open.spotify.com/album/alb1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(targets) != 3 {
		t.Fatalf("Expected 3 targets across both pages, got %d", len(targets))
	}
	if targets[2].Title != "Song C" {
		t.Errorf("Expected last target from the second page, got '%s'", targets[2].Title)
	}
	for _, target := range targets {
		if target.Album != "Album X" {
			t.Errorf("Expected album name on every target, got '%s'", target.Album)
		}
	}
}

func TestResolvePlaylist_FollowsAllPages(t *testing.T) {
	firstPage := `{"id":"pl1","name":"Mix","tracks":{
		"items":[{"track":{"name":"Song A","artists":[{"name":"Artist"}],"album":{"name":"Album X"}}}],
		"limit":1,"offset":0,"total":2,
		"next":"https://api.spotify.com/v1/playlists/pl1/tracks?offset=1&limit=1"}}`
	secondPage := `{"items":[
			{"track":{"name":"Song B","artists":[{"name":"Artist"}],"album":{"name":"Album Y"}}},
			{"track":{"name":"","artists":[],"album":{"name":""}}}],
		"limit":1,"offset":1,"total":2,"next":null}`

	resolver := fakeCatalogResolver(func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/tracks") {
			return jsonResponse(secondPage), nil
		}
		return jsonResponse(firstPage), nil
	})

	targets, err := resolver.Resolve(context.Background(), "https://open.spotify.com/playlist/pl1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("Expected 2 targets with the nameless entry skipped, got %d", len(targets))
	}
	if targets[1].Title != "Song B" || targets[1].Album != "Album Y" {
		t.Errorf("Unexpected second-page target: %+v", targets[1])
	}
}
