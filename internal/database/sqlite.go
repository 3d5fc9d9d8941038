// Package database implements the index store on SQLite.
package database

import (
	"database/sql"
	"errors"
	"fmt"

	"recvault/internal/model"
	"recvault/internal/registry"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the registry.Store interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLite store.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, path: ""}
}

// OpenConnection opens and configures a SQLite database connection with
// appropriate PRAGMAs. Exported for tools and tests that need a properly
// configured connection. path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each pooled connection to ":memory:" would get its own database, so
	// in-memory use pins the pool to a single connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Request handlers and the reconciler write concurrently; wait for locks
	// instead of failing with SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// User operations

func (s *SQLiteStore) UpsertUser(user *model.User) error {
	_, err := s.db.Exec(`
		INSERT INTO users (user_id, display_name, avatar_url, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = excluded.display_name,
			avatar_url   = excluded.avatar_url,
			last_seen    = excluded.last_seen`,
		user.UserID, user.DisplayName, user.AvatarURL, user.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(userID string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRow(`
		SELECT user_id, display_name, avatar_url, last_seen
		FROM users WHERE user_id = ?`, userID,
	).Scan(&u.UserID, &u.DisplayName, &u.AvatarURL, &u.LastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return &u, nil
}

// Chunk operations

// InsertChunkIfAbsent registers a chunk. The uniqueness constraint on
// (user_id, date, filename) makes this atomic against concurrent passes, and
// DO NOTHING covers soft-deleted rows too, so a rescan can never revive a
// deleted chunk.
func (s *SQLiteStore) InsertChunkIfAbsent(chunk *model.Chunk) (bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO chunks (id, user_id, date, filename, filepath, created_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT (user_id, date, filename) DO NOTHING`,
		chunk.ID, chunk.UserID, chunk.Date, chunk.Filename, chunk.Filepath, chunk.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting chunk: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking insert result: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListChunksByUser(userID string) ([]*model.Chunk, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, date, filename, filepath, created_at, is_deleted
		FROM chunks WHERE user_id = ? AND is_deleted = 0`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.ID, &c.UserID, &c.Date, &c.Filename, &c.Filepath, &c.CreatedAt, &c.IsDeleted); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		chunks = append(chunks, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk rows: %w", err)
	}
	return chunks, nil
}

func (s *SQLiteStore) GetChunk(userID, date, filename string) (*model.Chunk, error) {
	var c model.Chunk
	err := s.db.QueryRow(`
		SELECT id, user_id, date, filename, filepath, created_at, is_deleted
		FROM chunks
		WHERE user_id = ? AND date = ? AND filename = ? AND is_deleted = 0`,
		userID, date, filename,
	).Scan(&c.ID, &c.UserID, &c.Date, &c.Filename, &c.Filepath, &c.CreatedAt, &c.IsDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding chunk: %w", err)
	}
	return &c, nil
}

// MarkChunkDeleted flips the deletion flag. The is_deleted guard in the WHERE
// clause makes concurrent double deletes resolve to exactly one winner.
func (s *SQLiteStore) MarkChunkDeleted(id string) error {
	res, err := s.db.Exec(`UPDATE chunks SET is_deleted = 1 WHERE id = ? AND is_deleted = 0`, id)
	if err != nil {
		return fmt.Errorf("marking chunk deleted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return registry.ErrNotFound
	}
	return nil
}

// Legacy recording operations

func (s *SQLiteStore) InsertRecordingIfAbsent(rec *model.LegacyRecording) (bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO legacy_recordings (id, user_id, filename, filepath, created_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT (user_id, filename) DO NOTHING`,
		rec.ID, rec.UserID, rec.Filename, rec.Filepath, rec.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting recording: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking insert result: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListRecordingsByUser(userID string) ([]*model.LegacyRecording, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, filename, filepath, created_at, is_deleted
		FROM legacy_recordings WHERE user_id = ? AND is_deleted = 0`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing recordings: %w", err)
	}
	defer rows.Close()

	var recs []*model.LegacyRecording
	for rows.Next() {
		var r model.LegacyRecording
		if err := rows.Scan(&r.ID, &r.UserID, &r.Filename, &r.Filepath, &r.CreatedAt, &r.IsDeleted); err != nil {
			return nil, fmt.Errorf("scanning recording row: %w", err)
		}
		recs = append(recs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recording rows: %w", err)
	}
	return recs, nil
}

func (s *SQLiteStore) GetRecording(userID, filename string) (*model.LegacyRecording, error) {
	var r model.LegacyRecording
	err := s.db.QueryRow(`
		SELECT id, user_id, filename, filepath, created_at, is_deleted
		FROM legacy_recordings
		WHERE user_id = ? AND filename = ? AND is_deleted = 0`,
		userID, filename,
	).Scan(&r.ID, &r.UserID, &r.Filename, &r.Filepath, &r.CreatedAt, &r.IsDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding recording: %w", err)
	}
	return &r, nil
}

func (s *SQLiteStore) MarkRecordingDeleted(id string) error {
	res, err := s.db.Exec(`UPDATE legacy_recordings SET is_deleted = 1 WHERE id = ? AND is_deleted = 0`, id)
	if err != nil {
		return fmt.Errorf("marking recording deleted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return registry.ErrNotFound
	}
	return nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteStore implements registry.Store
var _ registry.Store = (*SQLiteStore)(nil)
