package fetch

// Package fetch implements the download pipeline built on top of yt-dlp
// (via github.com/lrstanley/go-ytdlp). It runs the two-attempt proxy
// fallback policy per target, judges batch success by what actually landed
// in the workspace, and packages multi-target results into a single archive.
