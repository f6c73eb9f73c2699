// Package sweep implements the retention sweeper: a periodically running
// task that deletes storage entries older than their area's retention
// window. The sweeper is an explicitly constructed handle with Start/Stop;
// nothing runs at import time.
package sweep

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Registry answers whether a path belongs to an in-flight request. The
// sweeper never deletes registered paths regardless of age.
type Registry interface {
	InUse(path string) bool
}

// Area is one managed storage tree.
type Area struct {
	Name string
	Path string

	// Window is the maximum age an entry may reach before removal.
	Window time.Duration

	// PerUser marks the downloads layout <path>/<user>/<session>: the age
	// cutoff applies to session directories one level down, and user
	// directories left empty are removed opportunistically.
	PerUser bool
}

// Sweeper periodically removes stale entries from its areas.
type Sweeper struct {
	interval time.Duration
	areas    []Area
	registry Registry
	now      func() time.Time

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	started bool
}

// New creates a sweeper. registry may be nil when no in-use tracking is
// needed (tests, tooling).
func New(interval time.Duration, registry Registry, areas ...Area) *Sweeper {
	return &Sweeper{
		interval: interval,
		areas:    areas,
		registry: registry,
		now:      time.Now,
	}
}

// SetClock overrides the sweeper's clock. Used by tests.
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Start launches the background sweep loop. Calling Start twice is an
// error in usage and is ignored.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.SweepOnce()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop terminates the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	close(s.stop)
	<-s.done
	s.started = false
}

// SweepOnce runs a single pass over every area and returns how many entries
// were removed. Each deletion is independent; failures are logged and the
// sweep continues.
func (s *Sweeper) SweepOnce() int {
	removed := 0
	for _, area := range s.areas {
		removed += s.sweepArea(area)
	}
	return removed
}

func (s *Sweeper) sweepArea(area Area) int {
	if !area.PerUser {
		return s.sweepDir(area, area.Path, false)
	}

	users, err := os.ReadDir(area.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("sweep %s: read %s: %v", area.Name, area.Path, err)
		}
		return 0
	}

	removed := 0
	for _, user := range users {
		if !user.IsDir() {
			continue
		}
		userDir := filepath.Join(area.Path, user.Name())
		removed += s.sweepDir(area, userDir, true)

		// Drop user directories that ended up empty. Remove refuses
		// non-empty directories, so this is safe to attempt blindly.
		if err := os.Remove(userDir); err == nil {
			log.Printf("sweep %s: removed empty user directory %s", area.Name, user.Name())
		}
	}
	return removed
}

// sweepDir removes dir's immediate children older than the window.
func (s *Sweeper) sweepDir(area Area, dir string, sessions bool) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("sweep %s: read %s: %v", area.Name, dir, err)
		}
		return 0
	}

	cutoff := s.now().Add(-area.Window)
	removed := 0
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if s.registry != nil && s.registry.InUse(path) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Printf("sweep %s: stat %s: %v", area.Name, path, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			log.Printf("sweep %s: remove %s: %v", area.Name, path, err)
			continue
		}
		removed++
		kind := "entry"
		if sessions {
			kind = "session"
		}
		log.Printf("sweep %s: removed stale %s %s (age %s)",
			area.Name, kind, entry.Name(), s.now().Sub(info.ModTime()).Round(time.Minute))
	}
	return removed
}
