// Package lockfile implements plugloc.lock, which records an MD5 checksum
// of every source text seen per group. Comparing a new fetch against it
// reveals keys whose English text changed upstream after they were
// translated; the key store itself never overwrites such translations.
//
// The lock file lives in the project root as plugloc.lock.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// LockFileName is the default lock file name.
const LockFileName = "plugloc.lock"

// Version is the lock file format version.
const Version = 1

// LockFile is the plugloc.lock structure.
type LockFile struct {
	Version int                          `yaml:"version"`
	Sources map[string]map[string]string `yaml:"sources"` // group -> key -> md5

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads the lock file from dir. A missing file yields an empty lock.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version: Version,
		Sources: make(map[string]map[string]string),
		path:    path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path
	if lf.Sources == nil {
		lf.Sources = make(map[string]map[string]string)
	}
	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}
	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}
	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Checksums
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// Changed returns, sorted, the keys of entries that were recorded before
// with a different source text. Keys seen for the first time are not
// reported.
func (lf *LockFile) Changed(group string, entries map[string]string) []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	known := lf.Sources[group]
	var changed []string
	for key, text := range entries {
		if old, ok := known[key]; ok && old != Hash(text) {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed
}

// Update records the checksums of entries.
func (lf *LockFile) Update(group string, entries map[string]string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Sources[group] == nil {
		lf.Sources[group] = make(map[string]string, len(entries))
	}
	for key, text := range entries {
		lf.Sources[group][key] = Hash(text)
	}
}

// Clean drops recorded keys of group that are not in currentKeys.
func (lf *LockFile) Clean(group string, currentKeys []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Sources[group]
	if existing == nil {
		return
	}
	valid := make(map[string]bool, len(currentKeys))
	for _, k := range currentKeys {
		valid[k] = true
	}
	for k := range existing {
		if !valid[k] {
			delete(existing, k)
		}
	}
}

// RemoveGroup forgets all checksums of a group.
func (lf *LockFile) RemoveGroup(group string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	delete(lf.Sources, group)
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of groups and recorded keys.
func (lf *LockFile) Stats() (groups, keys int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	groups = len(lf.Sources)
	for _, m := range lf.Sources {
		keys += len(m)
	}
	return
}

// Groups returns the recorded group keys, sorted.
func (lf *LockFile) Groups() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	groups := make([]string, 0, len(lf.Sources))
	for g := range lf.Sources {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	groups, keys := lf.Stats()
	if groups == 0 {
		return "empty"
	}
	var parts []string
	for _, g := range lf.Groups() {
		parts = append(parts, fmt.Sprintf("%s: %d keys", g, len(lf.Sources[g])))
	}
	return fmt.Sprintf("%d groups, %d keys (%s)", groups, keys, strings.Join(parts, ", "))
}
