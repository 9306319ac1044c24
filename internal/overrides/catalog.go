// Package overrides loads user-authored classification overrides keyed by
// absolute file path. An override replaces heuristic classification entirely
// and is re-applied on every scan.
package overrides

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"librarian/internal/logging"
	"librarian/internal/media"
)

// Override pins the classification of one file.
type Override struct {
	Path     string `yaml:"path"`
	Category string `yaml:"category"`
	ShowName string `yaml:"show_name"`
	Season   *int   `yaml:"season"`
	Episode  *int   `yaml:"episode"`
}

// Classification converts the override into a classification. Unknown
// categories fall back to movie.
func (o Override) Classification() media.Classification {
	category, ok := media.ParseCategory(o.Category)
	if !ok {
		category = media.CategoryMovie
	}
	c := media.Classification{Category: category, ShowName: strings.TrimSpace(o.ShowName)}
	if category == media.CategoryShow {
		c.Season = o.Season
		c.Episode = o.Episode
	}
	return c
}

// Catalog is a file-backed set of overrides. The file is re-read whenever its
// modification time changes. A nil Catalog has no overrides.
type Catalog struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	loaded  time.Time
	entries map[string]Override
}

// NewCatalog returns a catalog for the YAML (or JSON) file at path, or nil
// when path is empty.
func NewCatalog(path string, logger *slog.Logger) *Catalog {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil
	}
	return &Catalog{
		path:   trimmed,
		logger: logging.NewComponentLogger(logger, "overrides"),
	}
}

// Lookup returns the override for an absolute file path.
func (c *Catalog) Lookup(path string) (Override, bool, error) {
	if c == nil {
		return Override{}, false, nil
	}
	if err := c.ensureLoaded(); err != nil {
		return Override{}, false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[filepath.Clean(path)]
	return entry, ok, nil
}

// Len reports the number of loaded overrides.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Load forces the file to be read now so errors surface before a scan starts.
func (c *Catalog) Load() error {
	if c == nil {
		return nil
	}
	return c.ensureLoaded()
}

func (c *Catalog) ensureLoaded() error {
	info, err := os.Stat(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat overrides: %w", err)
	}

	c.mu.RLock()
	current := !c.loaded.IsZero() && c.loaded.Equal(info.ModTime())
	c.mu.RUnlock()
	if current {
		return nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read overrides: %w", err)
	}
	entries, err := parseOverrides(data)
	if err != nil {
		return fmt.Errorf("parse overrides %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.entries = entries
	c.loaded = info.ModTime()
	c.mu.Unlock()
	c.logger.Info("loaded classification overrides",
		logging.String(logging.FieldPath, c.path),
		logging.Int("count", len(entries)),
	)
	return nil
}

// parseOverrides accepts a list of overrides, an object with an "overrides"
// list, or an object keyed by file path.
func parseOverrides(data []byte) (map[string]Override, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]Override{}, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return map[string]Override{}, nil
	}
	doc := root.Content[0]

	var list []Override
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&list); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		if hasKey(doc, "overrides") {
			var wrapper struct {
				Overrides []Override `yaml:"overrides"`
			}
			if err := doc.Decode(&wrapper); err != nil {
				return nil, err
			}
			list = wrapper.Overrides
			break
		}
		var byPath map[string]Override
		if err := doc.Decode(&byPath); err != nil {
			return nil, err
		}
		for path, entry := range byPath {
			entry.Path = path
			list = append(list, entry)
		}
	default:
		return nil, fmt.Errorf("unexpected document kind %d", doc.Kind)
	}

	entries := make(map[string]Override, len(list))
	for _, entry := range list {
		entry.Path = strings.TrimSpace(entry.Path)
		if entry.Path == "" {
			continue
		}
		if _, ok := media.ParseCategory(entry.Category); !ok {
			return nil, fmt.Errorf("override for %s: unknown category %q", entry.Path, entry.Category)
		}
		entries[filepath.Clean(entry.Path)] = entry
	}
	return entries, nil
}

func hasKey(node *yaml.Node, key string) bool {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}
