package testsupport

import (
	"context"
	"testing"

	"librarian/internal/analysiscache"
	"librarian/internal/config"
	"librarian/internal/logging"
)

// MustOpenCache opens the analysis cache named by cfg and registers cleanup.
func MustOpenCache(t testing.TB, cfg *config.Config) *analysiscache.Store {
	t.Helper()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store, err := analysiscache.Open(context.Background(), cfg.Paths.CachePath, logging.NewNop())
	if err != nil {
		t.Fatalf("analysiscache.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
