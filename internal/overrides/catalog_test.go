package overrides

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"librarian/internal/media"
)

func writeOverrides(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write overrides: %v", err)
	}
}

func TestLookupYAMLList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	writeOverrides(t, path, `
overrides:
  - path: /lib/Movies/Heat (1995)/Heat.mkv
    category: show
    show_name: Heat Series
    season: 2
    episode: 4
  - path: /lib/Docs/bonus.mkv
    category: movie
`)
	catalog := NewCatalog(path, nil)

	entry, ok, err := catalog.Lookup("/lib/Movies/Heat (1995)/./Heat.mkv")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !ok {
		t.Fatal("expected override to match cleaned path")
	}
	c := entry.Classification()
	if c.Category != media.CategoryShow || c.ShowName != "Heat Series" || *c.Season != 2 || *c.Episode != 4 {
		t.Fatalf("unexpected classification %+v", c)
	}

	entry, ok, _ = catalog.Lookup("/lib/Docs/bonus.mkv")
	if !ok || entry.Classification().Category != media.CategoryMovie || entry.Classification().Season != nil {
		t.Fatalf("unexpected movie override %+v", entry)
	}
	if catalog.Len() != 2 {
		t.Fatalf("expected 2 overrides, got %d", catalog.Len())
	}
}

func TestLookupJSONKeyedByPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.json")
	writeOverrides(t, path, `{"/lib/a.mkv": {"category": "extra", "show_name": "Show"}}`)

	entry, ok, err := NewCatalog(path, nil).Lookup("/lib/a.mkv")
	if err != nil || !ok {
		t.Fatalf("expected JSON override, ok=%v err=%v", ok, err)
	}
	if entry.Classification().Category != media.CategoryExtra {
		t.Fatalf("unexpected category %q", entry.Category)
	}
}

func TestReloadsWhenFileChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	writeOverrides(t, path, "- path: /lib/a.mkv\n  category: movie\n")
	catalog := NewCatalog(path, nil)
	if _, ok, _ := catalog.Lookup("/lib/b.mkv"); ok {
		t.Fatal("unexpected match")
	}

	writeOverrides(t, path, "- path: /lib/b.mkv\n  category: show\n")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if _, ok, _ := catalog.Lookup("/lib/b.mkv"); !ok {
		t.Fatal("expected catalog to reload after modification")
	}
}

func TestRejectsUnknownCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	writeOverrides(t, path, "- path: /lib/a.mkv\n  category: documentary\n")
	if err := NewCatalog(path, nil).Load(); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestMissingFileAndNilCatalog(t *testing.T) {
	catalog := NewCatalog(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if _, ok, err := catalog.Lookup("/lib/a.mkv"); ok || err != nil {
		t.Fatalf("missing file should mean no overrides, ok=%v err=%v", ok, err)
	}
	var nilCatalog *Catalog
	if _, ok, err := nilCatalog.Lookup("/lib/a.mkv"); ok || err != nil {
		t.Fatal("nil catalog should have no overrides")
	}
	if NewCatalog("  ", nil) != nil {
		t.Fatal("empty path should produce a nil catalog")
	}
}
