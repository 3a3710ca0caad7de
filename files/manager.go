// Package files persists aggregation snapshots under a local storage root.
package files

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"rssmerge/types"
)

// CanonicalName is the fixed name of the current snapshot. It is replaced
// wholesale on every save and is never eligible for cleanup.
const CanonicalName = "result.json"

// ErrNotFound is returned by Info for files absent from the storage root.
var ErrNotFound = errors.New("file not found")

// FileInfo describes one stored snapshot file.
type FileInfo struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created_time"`
	Modified time.Time `json:"modified_time"`
	URL      string    `json:"url"`
}

// Manager owns the storage root and the canonical snapshot within it.
type Manager struct {
	root      string
	urlPrefix string
}

// NewManager resolves root to an absolute path, creates it if absent
// (0o755), and returns a manager serving URLs under urlPrefix.
func NewManager(root, urlPrefix string) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %q: %w", abs, err)
	}

	return &Manager{
		root:      abs,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
	}, nil
}

// Root returns the absolute storage root.
func (m *Manager) Root() string { return m.root }

// Save serializes rows as indented UTF-8 JSON and atomically replaces the
// canonical snapshot. Non-ASCII characters are written literally, not as
// escape sequences. Returns the canonical filename.
//
// The write goes to a temp file in the same directory followed by a rename,
// so a concurrent reader never observes a half-written snapshot.
func (m *Manager) Save(rows []types.MergedRow) (string, error) {
	if rows == nil {
		rows = []types.MergedRow{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(m.root, CanonicalName+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("chmod snapshot: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(m.root, CanonicalName)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("replace snapshot: %w", err)
	}

	return CanonicalName, nil
}

// FileURL returns the public URL for a stored file. No existence check is
// performed.
func (m *Manager) FileURL(filename string) string {
	return m.urlPrefix + "/" + filename
}

// Path returns the absolute path of a file inside the storage root, or an
// error if name tries to escape it.
func (m *Manager) Path(name string) (string, error) {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid filename %q", name)
	}
	return filepath.Join(m.root, name), nil
}

// Cleanup deletes old snapshot files beyond the keep most recently modified.
// Only *.json files are considered and the canonical snapshot is always
// retained regardless of age.
func (m *Manager) Cleanup(keep int) error {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return fmt.Errorf("read storage dir: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}

	var old []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || e.Name() == CanonicalName {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		old = append(old, candidate{
			path:    filepath.Join(m.root, e.Name()),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(old, func(i, j int) bool {
		return old[i].modTime.After(old[j].modTime)
	})

	if keep < 0 {
		keep = 0
	}
	for _, c := range old[min(keep, len(old)):] {
		if err := os.Remove(c.path); err != nil {
			return fmt.Errorf("remove old file %q: %w", c.path, err)
		}
	}

	return nil
}

// Info returns metadata for a stored file, or ErrNotFound.
func (m *Manager) Info(filename string) (*FileInfo, error) {
	path, err := m.Path(filename)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}

	return &FileInfo{
		Filename: filename,
		Size:     stat.Size(),
		Created:  stat.ModTime(),
		Modified: stat.ModTime(),
		URL:      m.FileURL(filename),
	}, nil
}
