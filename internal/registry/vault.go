package registry

import "io"

// ArchiveVault stores copies of audio files that are being deleted from the
// recordings volume.
type ArchiveVault interface {
	// Put stores an object under the given key, overwriting any previous
	// object with the same key.
	Put(key string, r io.Reader) error

	// Get retrieves an object by key and writes it to w.
	Get(key string, w io.Writer) error

	// ValidateSetup verifies that the vault is accessible and properly
	// configured.
	ValidateSetup() error
}
