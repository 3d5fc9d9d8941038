// Package vault implements archive storage backends for deleted audio.
package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"recvault/internal/registry"
)

// MemoryVault is an in-memory implementation of registry.ArchiveVault.
// It is intended for tests.
type MemoryVault struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryVault creates a new in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{objects: make(map[string][]byte)}
}

// Put stores an object under the given key.
func (v *MemoryVault) Put(key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading object data: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.objects[key] = data
	return nil
}

// Get retrieves an object by key and writes it to w.
func (v *MemoryVault) Get(key string, w io.Writer) error {
	v.mu.RLock()
	data, ok := v.objects[key]
	v.mu.RUnlock()

	if !ok {
		return fmt.Errorf("object not found: %s", key)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing object data: %w", err)
	}
	return nil
}

// ValidateSetup always succeeds for the in-memory vault.
func (v *MemoryVault) ValidateSetup() error {
	return nil
}

// Keys returns all stored keys. Test helper.
func (v *MemoryVault) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	keys := make([]string, 0, len(v.objects))
	for k := range v.objects {
		keys = append(keys, k)
	}
	return keys
}

// Compile-time check that MemoryVault implements registry.ArchiveVault
var _ registry.ArchiveVault = (*MemoryVault)(nil)
