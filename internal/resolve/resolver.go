// Package resolve turns a submitted catalog URL into the list of targets to
// fetch. The production implementation talks to the Spotify Web API with a
// client-credentials pair.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/downtify/downtify/internal/model"
)

// ErrNoTargets means the catalog found nothing for the URL.
var ErrNoTargets = errors.New("no tracks found for the given URL")

// ErrUnsupportedURL means the URL does not name a track, album, or playlist.
var ErrUnsupportedURL = errors.New("unsupported catalog URL")

// Resolver resolves a user-submitted URL into downloadable targets.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) ([]*model.Target, error)
}

// EntryKind is the type of catalog entity a URL names.
type EntryKind string

const (
	KindTrack    EntryKind = "track"
	KindAlbum    EntryKind = "album"
	KindPlaylist EntryKind = "playlist"
)

// ParseURL extracts the entity kind and ID from an open.spotify.com URL or
// a spotify: URI.
func ParseURL(rawURL string) (EntryKind, string, error) {
	rawURL = strings.TrimSpace(rawURL)

	if strings.HasPrefix(rawURL, "spotify:") {
		parts := strings.Split(rawURL, ":")
		if len(parts) == 3 {
			return kindFromString(parts[1], parts[2])
		}
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")

	// Accept /track/<id> and locale-prefixed /intl-xx/track/<id> forms.
	for i := 0; i+1 < len(segments); i++ {
		switch segments[i] {
		case "track", "album", "playlist":
			return kindFromString(segments[i], segments[i+1])
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
}

func kindFromString(kind, id string) (EntryKind, string, error) {
	if id == "" {
		return "", "", ErrUnsupportedURL
	}
	switch kind {
	case "track":
		return KindTrack, id, nil
	case "album":
		return KindAlbum, id, nil
	case "playlist":
		return KindPlaylist, id, nil
	}
	return "", "", fmt.Errorf("%w: kind %q", ErrUnsupportedURL, kind)
}

// SpotifyResolver resolves catalog URLs via the Spotify Web API.
type SpotifyResolver struct {
	client *spotify.Client
}

// NewSpotifyResolver authenticates with the client-credentials flow and
// returns a ready resolver.
func NewSpotifyResolver(ctx context.Context, clientID, clientSecret string) (*SpotifyResolver, error) {
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	token, err := config.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog authentication: %w", err)
	}

	httpClient := spotifyauth.New().Client(ctx, token)
	return &SpotifyResolver{client: spotify.New(httpClient)}, nil
}

// Resolve implements Resolver.
func (r *SpotifyResolver) Resolve(ctx context.Context, rawURL string) ([]*model.Target, error) {
	kind, id, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindTrack:
		return r.resolveTrack(ctx, spotify.ID(id))
	case KindAlbum:
		return r.resolveAlbum(ctx, spotify.ID(id))
	case KindPlaylist:
		return r.resolvePlaylist(ctx, spotify.ID(id))
	}
	return nil, ErrUnsupportedURL
}

func (r *SpotifyResolver) resolveTrack(ctx context.Context, id spotify.ID) ([]*model.Target, error) {
	track, err := r.client.GetTrack(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("look up track: %w", err)
	}
	return []*model.Target{fullTrackTarget(track)}, nil
}

// resolveAlbum pages through every album track; large albums span multiple
// API pages.
func (r *SpotifyResolver) resolveAlbum(ctx context.Context, id spotify.ID) ([]*model.Target, error) {
	album, err := r.client.GetAlbum(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("look up album: %w", err)
	}

	var targets []*model.Target
	page := &album.Tracks
	for {
		for i := range page.Tracks {
			track := &page.Tracks[i]
			targets = append(targets, &model.Target{
				Title:   track.Name,
				Artists: artistNames(track.Artists),
				Album:   album.Name,
			})
		}
		err := r.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("page album tracks: %w", err)
		}
	}
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	return targets, nil
}

// resolvePlaylist pages through every playlist entry, skipping unplayable
// ones the API reports with an empty name.
func (r *SpotifyResolver) resolvePlaylist(ctx context.Context, id spotify.ID) ([]*model.Target, error) {
	playlist, err := r.client.GetPlaylist(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("look up playlist: %w", err)
	}

	var targets []*model.Target
	page := &playlist.Tracks
	for {
		for i := range page.Tracks {
			track := &page.Tracks[i].Track
			if track.Name == "" {
				continue
			}
			targets = append(targets, fullTrackTarget(track))
		}
		err := r.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("page playlist tracks: %w", err)
		}
	}
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	return targets, nil
}

func fullTrackTarget(track *spotify.FullTrack) *model.Target {
	return &model.Target{
		Title:   track.Name,
		Artists: artistNames(track.Artists),
		Album:   track.Album.Name,
	}
}

func artistNames(artists []spotify.SimpleArtist) []string {
	names := make([]string, 0, len(artists))
	for _, artist := range artists {
		names = append(names, artist.Name)
	}
	return names
}
