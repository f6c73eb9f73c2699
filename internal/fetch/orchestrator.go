package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/downtify/downtify/internal/model"
	"github.com/downtify/downtify/internal/workspace"
)

// ErrNothingFetched means no file landed in the workspace after all targets
// were attempted.
var ErrNothingFetched = errors.New("no files were produced for this request")

// TargetResult records the outcome of one target's attempts.
type TargetResult struct {
	Target   *model.Target
	Success  bool
	Fallback bool
	Err      error
}

// BatchResult is the outcome of fetching all targets of one request.
type BatchResult struct {
	Results []TargetResult

	// FilesPresent is the authoritative success signal: the workspace
	// holds at least one file.
	FilesPresent bool

	// ServedFile is the filename (relative to the workspace) handed back
	// to the user: the lone file for single-target batches, the archive
	// for multi-target batches.
	ServedFile string
}

// Orchestrator runs the two-attempt fetch policy per target and packages
// batch output.
type Orchestrator struct {
	runner Runner
}

// NewOrchestrator creates an orchestrator over the given runner.
func NewOrchestrator(runner Runner) *Orchestrator {
	return &Orchestrator{runner: runner}
}

// FetchTarget attempts one target into dir. With a proxy configured the
// primary attempt uses it and a failed primary is followed by exactly one
// fallback attempt without proxy fields; with no proxy there is exactly one
// attempt. Downloader errors count as attempt failure and are never
// re-raised.
func (o *Orchestrator) FetchTarget(ctx context.Context, target *model.Target, dir string, opts Options) TargetResult {
	query := targetQuery(target)
	template := outputTemplate(dir, target)

	err := o.runner.Download(ctx, query, template, opts)
	if err == nil {
		return TargetResult{Target: target, Success: true}
	}
	log.Printf("fetch attempt failed for %q: %v", target.DisplayName(), err)

	if opts.ProxyURL == "" {
		return TargetResult{Target: target, Err: err}
	}

	fallbackErr := o.runner.Download(ctx, query, template, opts.withoutProxy())
	if fallbackErr != nil {
		log.Printf("no-proxy fallback failed for %q: %v", target.DisplayName(), fallbackErr)
		return TargetResult{Target: target, Fallback: true, Err: fallbackErr}
	}
	return TargetResult{Target: target, Success: true, Fallback: true}
}

// FetchBatch attempts every target in order, then judges overall success by
// inspecting the workspace rather than aggregating per-target flags. When
// the two signals diverge the divergence is logged as an anomaly and the
// file-presence signal wins.
func (o *Orchestrator) FetchBatch(ctx context.Context, session *model.Session, targets []*model.Target, opts Options) (BatchResult, error) {
	batch := BatchResult{Results: make([]TargetResult, 0, len(targets))}

	reported := 0
	for _, target := range targets {
		result := o.FetchTarget(ctx, target, session.Path, opts)
		if result.Success {
			reported++
		}
		batch.Results = append(batch.Results, result)
	}

	batch.FilesPresent = workspace.NonEmpty(session.Path)
	if batch.FilesPresent != (reported > 0) {
		log.Printf("anomaly: session %s reported %d/%d successful targets but workspace non-empty=%v",
			session.ID, reported, len(targets), batch.FilesPresent)
	}
	if !batch.FilesPresent {
		return batch, ErrNothingFetched
	}

	served, err := o.packageResults(session, len(targets) > 1)
	if err != nil {
		return batch, err
	}
	batch.ServedFile = served
	return batch, nil
}

// packageResults picks the served filename. Multi-target batches are zipped
// into a single archive and the loose files removed.
func (o *Orchestrator) packageResults(session *model.Session, multi bool) (string, error) {
	files, err := listFiles(session.Path)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", ErrNothingFetched
	}

	if !multi && len(files) == 1 {
		return files[0], nil
	}

	archiveName := fmt.Sprintf("downtify-%s.zip", shortID(session.ID))
	if err := archiveDirectory(session.Path, archiveName); err != nil {
		return "", fmt.Errorf("archive batch: %w", err)
	}
	return archiveName, nil
}

// targetQuery builds the downloader query: direct URLs pass through,
// catalog entries become a single-result search.
func targetQuery(target *model.Target) string {
	if strings.HasPrefix(target.URL, "http://") || strings.HasPrefix(target.URL, "https://") {
		return target.URL
	}
	return "ytsearch1:" + target.SearchQuery()
}

// outputTemplate names the produced file after the target's display name.
func outputTemplate(dir string, target *model.Target) string {
	base := sanitizeFilename(target.DisplayName())
	if base == "" {
		base = "%(title)s"
	}
	return filepath.Join(dir, base+".%(ext)s")
}

// sanitizeFilename strips path separators and control characters from a
// display name so it is safe as a single path element.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20, r == '/', r == '\\', r == 0x7f:
			// dropped
		case r == '%':
			// yt-dlp treats % as a template directive
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// listFiles returns the regular files directly inside dir.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read workspace %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
