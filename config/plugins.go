package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minios-linux/plugloc/keystore"
	"gopkg.in/yaml.v3"
)

// PluginsFileName is the group definition file relative to the project root.
var PluginsFileName = filepath.Join("config", "plugins.yaml")

// ErrGroupNotFound is returned for a group missing from plugins.yaml.
var ErrGroupNotFound = errors.New("group not found in plugins config")

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// PluginsFile is the top-level plugins.yaml structure.
type PluginsFile struct {
	Groups map[string]GroupConfig `yaml:"groups"`
}

// GroupConfig describes one plugin group.
type GroupConfig struct {
	// Name is the display name.
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Plugins are the Confluence plugin keys fetched for the group.
	Plugins []string `yaml:"plugins"`
}

// Info converts the group to registry metadata.
func (g GroupConfig) Info() keystore.GroupInfo {
	return keystore.GroupInfo{DisplayName: g.Name, Description: g.Description}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// LoadPlugins loads and validates a plugins.yaml file. A missing file yields
// an empty configuration.
func LoadPlugins(path string) (*PluginsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PluginsFile{Groups: map[string]GroupConfig{}}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var pf PluginsFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if pf.Groups == nil {
		pf.Groups = map[string]GroupConfig{}
	}

	for key, g := range pf.Groups {
		if _, err := keystore.TableName(key); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if g.Name == "" {
			g.Name = keystore.DefaultDisplayName(key)
		}
		pf.Groups[key] = g
	}
	return &pf, nil
}

// Keys returns the group keys in sorted order.
func (pf *PluginsFile) Keys() []string {
	keys := make([]string, 0, len(pf.Groups))
	for k := range pf.Groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Group looks up a group by key.
func (pf *PluginsFile) Group(key string) (GroupConfig, error) {
	g, ok := pf.Groups[key]
	if !ok {
		return GroupConfig{}, fmt.Errorf("%w: %q (available: %s)", ErrGroupNotFound, key, strings.Join(pf.Keys(), ", "))
	}
	return g, nil
}

// AllPlugins returns every plugin key across groups, deduplicated, in group
// key order.
func (pf *PluginsFile) AllPlugins() []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range pf.Keys() {
		for _, p := range pf.Groups[k].Plugins {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}
