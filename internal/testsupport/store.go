package testsupport

import (
	"testing"

	"matchlens/internal/config"
	"matchlens/internal/store"
)

// MustOpenStore opens a record store for the test config and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}
