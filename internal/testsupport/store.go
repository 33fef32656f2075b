package testsupport

import (
	"testing"

	"dubber/internal/config"
	"dubber/internal/jobstore"
)

// MustOpenStore opens a sqlite job store for the test config and closes it
// on cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobstore.SQLiteStore {
	t.Helper()

	store, err := jobstore.Open(cfg)
	if err != nil {
		t.Fatalf("open job store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
