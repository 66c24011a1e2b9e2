package testutil

import (
	"encoding/json"
	"sync"
	"testing"
)

// FakeLegacy is an in-memory legacy.Store
type FakeLegacy struct {
	mu     sync.Mutex
	values map[string]string

	// Error injection for testing
	GetErr    error
	RemoveErr error
}

func NewFakeLegacy() *FakeLegacy {
	return &FakeLegacy{values: make(map[string]string)}
}

func (f *FakeLegacy) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return "", false, f.GetErr
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *FakeLegacy) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *FakeLegacy) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	delete(f.values, key)
	return nil
}

// Has reports whether key is present
func (f *FakeLegacy) Has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok
}

// SetJSON stores v marshalled as JSON, failing the test on error
func (f *FakeLegacy) SetJSON(t *testing.T, key string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal legacy %s: %v", key, err)
	}
	f.Set(key, string(b))
}
