package fetch

import "time"

// Default fetch parameters
const (
	DefaultSocketTimeout = 30 * time.Second
	DefaultRetries       = 3

	// DefaultUserAgent is a fixed desktop browser identity used for every
	// attempt
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Options is the fetch configuration handed to the downloader. Every field
// is optional; zero values mean "not set".
type Options struct {
	// ProxyURL routes the primary attempt through a proxy. The fallback
	// attempt always clears it.
	ProxyURL string

	// CookiePath points at the selected cookie bundle, if any.
	CookiePath string

	// SourceAddress overrides the client IP to bind to. Only applied
	// together with the proxy.
	SourceAddress string

	SocketTimeout time.Duration
	Retries       int
	UserAgent     string
}

// withDefaults fills unset timeout/retry/user-agent fields.
func (o Options) withDefaults() Options {
	if o.SocketTimeout <= 0 {
		o.SocketTimeout = DefaultSocketTimeout
	}
	if o.Retries <= 0 {
		o.Retries = DefaultRetries
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}

// withoutProxy strips the proxy fields for the fallback attempt.
func (o Options) withoutProxy() Options {
	o.ProxyURL = ""
	o.SourceAddress = ""
	return o
}
