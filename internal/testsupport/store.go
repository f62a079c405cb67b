package testsupport

import (
	"context"
	"testing"

	"daemonkit/internal/config"
	"daemonkit/internal/store"
)

// MustOpenStore opens the config's store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), cfg.Store.Path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}
