package cookies

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/downtify/downtify/internal/model"
	"github.com/downtify/downtify/internal/workspace"
)

const (
	// EnvBundleName is the filename of the bundle materialized from
	// environment content. It is always treated as fresh.
	EnvBundleName = "environment.txt"

	// BundleExtension is required on every stored bundle file
	BundleExtension = ".txt"

	// DefaultFilePermissions for stored bundle files
	DefaultFilePermissions = 0644
)

// Prober validates one cookie bundle with a lightweight authenticated
// request. It reports a working flag and a free-text status; it must not
// return transport errors, those count as not working.
type Prober interface {
	Probe(ctx context.Context, path string) (bool, string)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, path string) (bool, string)

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context, path string) (bool, string) {
	return f(ctx, path)
}

// Store manages the cookie bundle directory.
type Store struct {
	dir    string
	prober Prober
	now    func() time.Time
}

// NewStore creates a store over dir using prober for validation.
func NewStore(dir string, prober Prober) *Store {
	return &Store{
		dir:    dir,
		prober: prober,
		now:    time.Now,
	}
}

// SetClock overrides the store's clock. Used by tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Dir returns the bundle directory.
func (s *Store) Dir() string {
	return s.dir
}

// MaterializeEnv writes environment-provided cookie content as a bundle
// file. Empty content is a no-op.
func (s *Store) MaterializeEnv(content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if err := os.MkdirAll(s.dir, workspace.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create cookie directory %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, EnvBundleName)
	if err := os.WriteFile(path, []byte(content), DefaultFilePermissions); err != nil {
		return fmt.Errorf("write environment bundle: %w", err)
	}
	return nil
}

// SaveUpload stores an uploaded bundle for the given (sanitized) uploader
// label and returns its path.
func (s *Store) SaveUpload(uploader string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("uploaded cookie file is empty")
	}
	if err := os.MkdirAll(s.dir, workspace.DefaultDirPermissions); err != nil {
		return "", fmt.Errorf("create cookie directory %s: %w", s.dir, err)
	}

	label := workspace.SanitizeLabel(uploader)
	name := fmt.Sprintf("%s_%d%s", label, s.now().UnixNano(), BundleExtension)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, content, DefaultFilePermissions); err != nil {
		return "", fmt.Errorf("write cookie bundle %s: %w", path, err)
	}
	return path, nil
}

// Delete removes a stored bundle by filename, rejecting path components.
func (s *Store) Delete(filename string) error {
	if filename == "" || strings.ContainsAny(filename, `/\`) || filename == "." || filename == ".." {
		return fmt.Errorf("invalid bundle name %q", filename)
	}
	if err := os.Remove(filepath.Join(s.dir, filename)); err != nil {
		return fmt.Errorf("delete bundle %s: %w", filename, err)
	}
	return nil
}

// candidates enumerates stored bundles without probing them.
func (s *Store) candidates() ([]model.CookieBundle, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cookie directory %s: %w", s.dir, err)
	}

	var bundles []model.CookieBundle
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), BundleExtension) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		bundle := model.CookieBundle{
			Path:      filepath.Join(s.dir, entry.Name()),
			Source:    model.CookieSourceUpload,
			CreatedAt: info.ModTime(),
		}
		if entry.Name() == EnvBundleName {
			bundle.Source = model.CookieSourceEnv
		} else if idx := strings.LastIndexByte(entry.Name(), '_'); idx > 0 {
			bundle.Uploader = entry.Name()[:idx]
		}
		bundles = append(bundles, bundle)
	}
	return bundles, nil
}

// List returns all stored bundles with a fresh validity probe, ranked the
// same way selection ranks them.
func (s *Store) List(ctx context.Context) ([]model.CookieBundle, error) {
	bundles, err := s.candidates()
	if err != nil {
		return nil, err
	}
	s.probeAll(ctx, bundles)
	s.rank(bundles)
	return bundles, nil
}

// Selection is the outcome of one SelectBest pass.
type Selection struct {
	Bundle *model.CookieBundle

	// Warned is set when no bundle probed as working and the newest
	// candidate was returned anyway.
	Warned bool
}

// SelectBest probes every candidate and returns the best one: the freshest
// working bundle when any work, otherwise the newest candidate with a
// warning, otherwise a nil-bundle selection. The probe always happens in
// this pass; no working flag is carried over from earlier rounds.
func (s *Store) SelectBest(ctx context.Context) (Selection, error) {
	bundles, err := s.candidates()
	if err != nil {
		return Selection{}, err
	}
	if len(bundles) == 0 {
		return Selection{}, nil
	}

	s.probeAll(ctx, bundles)
	s.rank(bundles)

	best := &bundles[0]
	if best.Working {
		return Selection{Bundle: best}, nil
	}
	return Selection{Bundle: best, Warned: true}, nil
}

// probeAll validates every bundle concurrently. Probe implementations never
// return errors; transport failures count as not working.
func (s *Store) probeAll(ctx context.Context, bundles []model.CookieBundle) {
	var g errgroup.Group
	for i := range bundles {
		g.Go(func() error {
			working, status := s.prober.Probe(ctx, bundles[i].Path)
			bundles[i].Working = working
			bundles[i].Status = status
			return nil
		})
	}
	_ = g.Wait()
}

// rank sorts bundles working-first, then youngest-first. The sort is stable
// so equal candidates keep enumeration order.
func (s *Store) rank(bundles []model.CookieBundle) {
	now := s.now()
	sort.SliceStable(bundles, func(i, j int) bool {
		if bundles[i].Working != bundles[j].Working {
			return bundles[i].Working
		}
		return bundles[i].Age(now) < bundles[j].Age(now)
	})
}
