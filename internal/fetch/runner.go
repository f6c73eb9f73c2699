package fetch

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lrstanley/go-ytdlp"
)

// Runner executes one download attempt for a query into outputTemplate.
// Implementations must treat every downloader failure as a returned error,
// never a panic or process exit.
type Runner interface {
	Download(ctx context.Context, query, outputTemplate string, opts Options) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, query, outputTemplate string, opts Options) error

// Download implements Runner.
func (f RunnerFunc) Download(ctx context.Context, query, outputTemplate string, opts Options) error {
	return f(ctx, query, outputTemplate, opts)
}

// YTDLPRunner drives yt-dlp for audio extraction.
type YTDLPRunner struct{}

// NewYTDLPRunner creates the production runner.
func NewYTDLPRunner() *YTDLPRunner {
	return &YTDLPRunner{}
}

// Download implements Runner using yt-dlp with audio extraction and
// embedded metadata.
func (r *YTDLPRunner) Download(ctx context.Context, query, outputTemplate string, opts Options) error {
	opts = opts.withDefaults()

	dl := ytdlp.New().
		ExtractAudio().
		AudioFormat("mp3").
		EmbedMetadata().
		EmbedThumbnail().
		ForceOverwrites().
		NoPlaylist().
		SocketTimeout(opts.SocketTimeout.Seconds()).
		Retries(strconv.Itoa(opts.Retries)).
		UserAgent(opts.UserAgent).
		Output(outputTemplate)

	if opts.CookiePath != "" {
		dl = dl.Cookies(opts.CookiePath)
	}
	if opts.ProxyURL != "" {
		dl = dl.Proxy(opts.ProxyURL)
		if opts.SourceAddress != "" {
			dl = dl.SourceAddress(opts.SourceAddress)
		}
	}

	if _, err := dl.Run(ctx, query); err != nil {
		return fmt.Errorf("yt-dlp: %w", err)
	}
	return nil
}
