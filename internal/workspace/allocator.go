package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/downtify/downtify/internal/model"
)

const (
	// DefaultUserLabel is substituted when the submitted name is empty or
	// sanitizes down to nothing
	DefaultUserLabel = "guest"

	// MaxUserLabelLength bounds the sanitized label
	MaxUserLabelLength = 32

	// DefaultDirPermissions for created workspace directories
	DefaultDirPermissions = 0755
)

// Allocator creates collision-free session workspaces under a fixed root and
// keeps an in-memory registry of paths still owned by in-flight requests.
type Allocator struct {
	root   string
	mu     sync.RWMutex
	active map[string]*model.Session
}

// NewAllocator creates an allocator rooted at dir.
func NewAllocator(dir string) *Allocator {
	return &Allocator{
		root:   dir,
		active: make(map[string]*model.Session),
	}
}

// Root returns the workspace tree root.
func (a *Allocator) Root() string {
	return a.root
}

// Allocate creates a fresh workspace directory for one download request and
// registers it as in use. The path is <root>/<sanitized label>/<session id>.
func (a *Allocator) Allocate(userLabel string) (*model.Session, error) {
	label := SanitizeLabel(userLabel)

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	session := &model.Session{
		ID:        id.String(),
		UserLabel: label,
		Path:      filepath.Join(a.root, label, id.String()),
		CreatedAt: time.Now(),
	}

	if err := os.MkdirAll(session.Path, DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", session.Path, err)
	}

	a.mu.Lock()
	a.active[session.Path] = session
	a.mu.Unlock()

	return session, nil
}

// Release unregisters a session, handing its directory over to the retention
// sweeper. Files stay on disk for later serving.
func (a *Allocator) Release(session *model.Session) {
	a.mu.Lock()
	delete(a.active, session.Path)
	a.mu.Unlock()
}

// Discard unregisters a session and removes its directory. Used on failure
// and empty-result paths; removal failure is reported, not fatal.
func (a *Allocator) Discard(session *model.Session) error {
	a.Release(session)
	if err := os.RemoveAll(session.Path); err != nil {
		return fmt.Errorf("remove workspace %s: %w", session.Path, err)
	}
	return nil
}

// InUse reports whether path belongs to a registered in-flight session.
func (a *Allocator) InUse(path string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.active[path]
	return ok
}

// ActiveCount returns the number of registered sessions.
func (a *Allocator) ActiveCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.active)
}

// SanitizeLabel reduces a user-supplied display name to a bounded
// alphanumeric-plus-hyphen/underscore string, substituting DefaultUserLabel
// when nothing survives.
func SanitizeLabel(label string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
		if b.Len() >= MaxUserLabelLength {
			break
		}
	}
	if b.Len() == 0 {
		return DefaultUserLabel
	}
	return b.String()
}

// NonEmpty reports whether dir contains at least one regular file, searching
// one level of subdirectories. The fetch orchestrator trusts this over the
// downloader's own success flags.
func NonEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			return true
		}
		sub, err := os.ReadDir(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		for _, s := range sub {
			if !s.IsDir() {
				return true
			}
		}
	}
	return false
}
