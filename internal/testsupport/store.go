package testsupport

import (
	"context"
	"testing"

	"billexact/internal/billing"
	"billexact/internal/config"
	"billexact/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewEntry inserts a manual entry for tests using the provided store.
func NewEntry(t testing.TB, st *store.Store, entry billing.TimeEntry) billing.TimeEntry {
	t.Helper()

	saved, err := st.InsertEntry(context.Background(), entry)
	if err != nil {
		t.Fatalf("store.InsertEntry: %v", err)
	}
	return saved
}
