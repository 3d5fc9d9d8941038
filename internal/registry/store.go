package registry

import "recvault/internal/model"

// Store provides an interface for index persistence operations.
// Every mutation must be atomic with respect to concurrent callers on the
// same key; a statement or row-level transaction per operation suffices.
type Store interface {
	// User operations

	// UpsertUser creates the user row or refreshes display name, avatar and
	// last-seen on an existing one.
	UpsertUser(user *model.User) error

	// GetUser returns a user by ID, or nil if none exists.
	GetUser(userID string) (*model.User, error)

	// Chunk operations

	// InsertChunkIfAbsent registers a chunk keyed by (user, date, filename).
	// Re-registering an existing key is a no-op, including keys whose row is
	// soft-deleted: rescans must never revive a deleted chunk.
	// Returns true if a row was inserted.
	InsertChunkIfAbsent(chunk *model.Chunk) (bool, error)

	// ListChunksByUser returns all non-deleted chunks for a user, in no
	// particular order.
	ListChunksByUser(userID string) ([]*model.Chunk, error)

	// GetChunk returns the non-deleted chunk with the given identity, or nil.
	GetChunk(userID, date, filename string) (*model.Chunk, error)

	// MarkChunkDeleted flips the chunk's deletion flag. Returns ErrNotFound
	// if the row does not exist or is already deleted, making double deletes
	// observable to callers.
	MarkChunkDeleted(id string) error

	// Legacy recording operations (same registry pattern as chunks)

	InsertRecordingIfAbsent(rec *model.LegacyRecording) (bool, error)
	ListRecordingsByUser(userID string) ([]*model.LegacyRecording, error)
	GetRecording(userID, filename string) (*model.LegacyRecording, error)
	MarkRecordingDeleted(id string) error

	// Close closes the underlying database connection.
	Close() error
}
