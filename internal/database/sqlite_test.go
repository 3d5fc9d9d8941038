package database

import (
	"errors"
	"testing"
	"time"

	"recvault/internal/model"
	"recvault/internal/registry"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := store.MigrateUp(); err != nil {
		store.Close()
		t.Fatalf("failed to apply migrations: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testChunk(id, user, date, filename string) *model.Chunk {
	return &model.Chunk{
		ID:        id,
		UserID:    user,
		Date:      date,
		Filename:  filename,
		Filepath:  "/recordings/" + user + "/chunks/" + date + "/" + filename,
		CreatedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
}

func TestSQLiteStore_UpsertUser(t *testing.T) {
	store := newTestStore(t)

	t.Run("creates and refreshes a user", func(t *testing.T) {
		seen := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
		err := store.UpsertUser(&model.User{
			UserID: "111", DisplayName: "Alice", AvatarURL: "http://a/1.png", LastSeen: seen,
		})
		if err != nil {
			t.Fatalf("UpsertUser() unexpected error: %v", err)
		}

		err = store.UpsertUser(&model.User{
			UserID: "111", DisplayName: "Alicia", AvatarURL: "http://a/2.png", LastSeen: seen.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("UpsertUser() second call unexpected error: %v", err)
		}

		got, err := store.GetUser("111")
		if err != nil {
			t.Fatalf("GetUser() unexpected error: %v", err)
		}
		if got == nil || got.DisplayName != "Alicia" || got.AvatarURL != "http://a/2.png" {
			t.Errorf("GetUser() = %+v, want refreshed Alicia row", got)
		}
	})

	t.Run("unknown user returns nil", func(t *testing.T) {
		got, err := store.GetUser("nope")
		if err != nil {
			t.Fatalf("GetUser() unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("GetUser() = %+v, want nil", got)
		}
	})
}

func TestSQLiteStore_InsertChunkIfAbsent(t *testing.T) {
	t.Run("first insert reports true, duplicate reports false", func(t *testing.T) {
		store := newTestStore(t)

		inserted, err := store.InsertChunkIfAbsent(testChunk("c1", "111", "2024-01-01", "chunk_001.wav"))
		if err != nil {
			t.Fatalf("InsertChunkIfAbsent() unexpected error: %v", err)
		}
		if !inserted {
			t.Error("first insert reported false")
		}

		inserted, err = store.InsertChunkIfAbsent(testChunk("c2", "111", "2024-01-01", "chunk_001.wav"))
		if err != nil {
			t.Fatalf("InsertChunkIfAbsent() duplicate unexpected error: %v", err)
		}
		if inserted {
			t.Error("duplicate insert reported true")
		}

		// The surviving row keeps the original ID.
		got, err := store.GetChunk("111", "2024-01-01", "chunk_001.wav")
		if err != nil || got == nil {
			t.Fatalf("GetChunk() = %v, %v, want a row", got, err)
		}
		if got.ID != "c1" {
			t.Errorf("surviving row ID = %q, want c1", got.ID)
		}
	})

	t.Run("same filename under different identity is a distinct row", func(t *testing.T) {
		store := newTestStore(t)

		for _, c := range []*model.Chunk{
			testChunk("c1", "111", "2024-01-01", "chunk_001.wav"),
			testChunk("c2", "111", "2024-01-02", "chunk_001.wav"),
			testChunk("c3", "222", "2024-01-01", "chunk_001.wav"),
		} {
			inserted, err := store.InsertChunkIfAbsent(c)
			if err != nil {
				t.Fatalf("InsertChunkIfAbsent(%s) unexpected error: %v", c.ID, err)
			}
			if !inserted {
				t.Errorf("InsertChunkIfAbsent(%s) reported false, want true", c.ID)
			}
		}
	})

	t.Run("soft-deleted identity blocks reinsertion", func(t *testing.T) {
		store := newTestStore(t)

		if _, err := store.InsertChunkIfAbsent(testChunk("c1", "111", "2024-01-01", "chunk_001.wav")); err != nil {
			t.Fatalf("InsertChunkIfAbsent() unexpected error: %v", err)
		}
		if err := store.MarkChunkDeleted("c1"); err != nil {
			t.Fatalf("MarkChunkDeleted() unexpected error: %v", err)
		}

		inserted, err := store.InsertChunkIfAbsent(testChunk("c2", "111", "2024-01-01", "chunk_001.wav"))
		if err != nil {
			t.Fatalf("InsertChunkIfAbsent() unexpected error: %v", err)
		}
		if inserted {
			t.Error("insert over a soft-deleted identity reported true")
		}

		got, err := store.GetChunk("111", "2024-01-01", "chunk_001.wav")
		if err != nil {
			t.Fatalf("GetChunk() unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("GetChunk() = %+v, want nil for a deleted identity", got)
		}
	})
}

func TestSQLiteStore_MarkChunkDeleted(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.InsertChunkIfAbsent(testChunk("c1", "111", "2024-01-01", "chunk_001.wav")); err != nil {
		t.Fatalf("InsertChunkIfAbsent() unexpected error: %v", err)
	}

	t.Run("first delete succeeds", func(t *testing.T) {
		if err := store.MarkChunkDeleted("c1"); err != nil {
			t.Errorf("MarkChunkDeleted() unexpected error: %v", err)
		}
	})

	t.Run("second delete reports not found", func(t *testing.T) {
		err := store.MarkChunkDeleted("c1")
		if !errors.Is(err, registry.ErrNotFound) {
			t.Errorf("MarkChunkDeleted() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("unknown id reports not found", func(t *testing.T) {
		err := store.MarkChunkDeleted("nope")
		if !errors.Is(err, registry.ErrNotFound) {
			t.Errorf("MarkChunkDeleted() error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteStore_ListChunksByUser(t *testing.T) {
	store := newTestStore(t)

	for _, c := range []*model.Chunk{
		testChunk("c1", "111", "2024-01-01", "chunk_001.wav"),
		testChunk("c2", "111", "2024-01-02", "chunk_001.wav"),
		testChunk("c3", "222", "2024-01-01", "chunk_001.wav"),
	} {
		if _, err := store.InsertChunkIfAbsent(c); err != nil {
			t.Fatalf("InsertChunkIfAbsent() unexpected error: %v", err)
		}
	}
	if err := store.MarkChunkDeleted("c2"); err != nil {
		t.Fatalf("MarkChunkDeleted() unexpected error: %v", err)
	}

	chunks, err := store.ListChunksByUser("111")
	if err != nil {
		t.Fatalf("ListChunksByUser() unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].ID != "c1" {
		t.Errorf("ListChunksByUser() = %+v, want only c1", chunks)
	}
}

func TestSQLiteStore_Recordings(t *testing.T) {
	store := newTestStore(t)

	rec := &model.LegacyRecording{
		ID: "r1", UserID: "111", Filename: "Full_Recording.mp3",
		Filepath:  "/recordings/Alice_111/Full_Recording.mp3",
		CreatedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}

	inserted, err := store.InsertRecordingIfAbsent(rec)
	if err != nil {
		t.Fatalf("InsertRecordingIfAbsent() unexpected error: %v", err)
	}
	if !inserted {
		t.Error("first insert reported false")
	}

	inserted, err = store.InsertRecordingIfAbsent(rec)
	if err != nil {
		t.Fatalf("InsertRecordingIfAbsent() duplicate unexpected error: %v", err)
	}
	if inserted {
		t.Error("duplicate insert reported true")
	}

	got, err := store.GetRecording("111", "Full_Recording.mp3")
	if err != nil || got == nil {
		t.Fatalf("GetRecording() = %v, %v, want a row", got, err)
	}

	if err := store.MarkRecordingDeleted("r1"); err != nil {
		t.Fatalf("MarkRecordingDeleted() unexpected error: %v", err)
	}
	if err := store.MarkRecordingDeleted("r1"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("second MarkRecordingDeleted() error = %v, want ErrNotFound", err)
	}

	got, err = store.GetRecording("111", "Full_Recording.mp3")
	if err != nil {
		t.Fatalf("GetRecording() unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("GetRecording() after delete = %+v, want nil", got)
	}
}
