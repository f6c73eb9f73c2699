package cookies

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	// DefaultProbeURL is the authenticated page used to validate bundles
	DefaultProbeURL = "https://music.youtube.com/"

	// DefaultProbeTimeout bounds one validation request
	DefaultProbeTimeout = 10 * time.Second

	// probeBodyLimit caps how much of the response is inspected
	probeBodyLimit = 1 << 20
)

// loggedInMarkers are substrings whose presence in the probe response marks
// the session as authenticated.
var loggedInMarkers = []string{
	`"LOGGED_IN":true`,
	`"logged_in":true`,
}

// HTTPProber validates cookie bundles by requesting an authenticated page
// and inspecting the response for logged-in indicators.
type HTTPProber struct {
	Client   *http.Client
	ProbeURL string
}

// NewHTTPProber creates a prober against DefaultProbeURL.
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{
		Client:   &http.Client{Timeout: DefaultProbeTimeout},
		ProbeURL: DefaultProbeURL,
	}
}

// Probe implements Prober. Any failure reading the bundle or reaching the
// service counts as not working; errors are folded into the status text.
func (p *HTTPProber) Probe(ctx context.Context, path string) (bool, string) {
	header, err := cookieHeaderFromFile(path)
	if err != nil {
		return false, fmt.Sprintf("unreadable: %v", err)
	}
	if header == "" {
		return false, "no cookies in file"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.ProbeURL, nil)
	if err != nil {
		return false, fmt.Sprintf("probe request: %v", err)
	}
	req.Header.Set("Cookie", header)

	resp, err := p.Client.Do(req)
	if err != nil {
		return false, fmt.Sprintf("probe failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("probe status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, probeBodyLimit))
	if err != nil {
		return false, fmt.Sprintf("probe read: %v", err)
	}

	for _, marker := range loggedInMarkers {
		if strings.Contains(string(body), marker) {
			return true, "logged in"
		}
	}
	return false, "not logged in"
}

// cookieHeaderFromFile flattens a Netscape-format cookie file into a Cookie
// header value. Comment and malformed lines are skipped.
func cookieHeaderFromFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var pairs []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		name, value := fields[5], fields[6]
		if name == "" {
			continue
		}
		pairs = append(pairs, name+"="+value)
	}
	return strings.Join(pairs, "; "), nil
}
