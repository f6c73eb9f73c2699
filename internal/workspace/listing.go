package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileEntry describes one produced file for the downloads listing.
type FileEntry struct {
	UserLabel string
	SessionID string
	Name      string
	Size      int64
	ModTime   time.Time
}

// ListFiles walks <root>/<user>/<session>/<file> and returns every produced
// file, newest first. Unreadable entries are skipped.
func (a *Allocator) ListFiles() ([]FileEntry, error) {
	users, err := os.ReadDir(a.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read workspace root %s: %w", a.root, err)
	}

	var files []FileEntry
	for _, user := range users {
		if !user.IsDir() {
			continue
		}
		sessions, err := os.ReadDir(filepath.Join(a.root, user.Name()))
		if err != nil {
			continue
		}
		for _, session := range sessions {
			if !session.IsDir() {
				continue
			}
			sessionDir := filepath.Join(a.root, user.Name(), session.Name())
			entries, err := os.ReadDir(sessionDir)
			if err != nil {
				continue
			}
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				info, err := entry.Info()
				if err != nil {
					continue
				}
				files = append(files, FileEntry{
					UserLabel: user.Name(),
					SessionID: session.Name(),
					Name:      entry.Name(),
					Size:      info.Size(),
					ModTime:   info.ModTime(),
				})
			}
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}

// ResolveFile maps a (user, session, filename) triple from the URL onto a
// path under the workspace root, rejecting traversal attempts.
func (a *Allocator) ResolveFile(userLabel, sessionID, filename string) (string, error) {
	for _, part := range []string{userLabel, sessionID, filename} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid path component %q", part)
		}
	}

	path := filepath.Join(a.root, userLabel, sessionID, filename)
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return path, nil
}
