package registry_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"recvault/internal/registry"
	"recvault/internal/testutil"
)

func TestQueryService_ListChunks(t *testing.T) {
	t.Run("orders dates descending and filenames ascending", func(t *testing.T) {
		root := t.TempDir()
		// Written out of order on purpose.
		writeFile(t, filepath.Join(root, "Alice_111", "chunks", "2024-01-01", "chunk_002.wav"))
		writeFile(t, filepath.Join(root, "Alice_111", "chunks", "2024-01-02", "chunk_001.wav"))
		writeFile(t, filepath.Join(root, "Alice_111", "chunks", "2024-01-01", "chunk_001.wav"))

		rec, store := newTestReconciler(t, root)
		if err := rec.RunPass(); err != nil {
			t.Fatalf("RunPass() unexpected error: %v", err)
		}

		got, err := registry.NewQueryService(store).ListChunks("111")
		if err != nil {
			t.Fatalf("ListChunks() unexpected error: %v", err)
		}

		want := []registry.DateChunks{
			{Date: "2024-01-02", Filenames: []string{"chunk_001.wav"}},
			{Date: "2024-01-01", Filenames: []string{"chunk_001.wav", "chunk_002.wav"}},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("ListChunks() = %+v, want %+v", got, want)
		}
	})

	t.Run("drops rows whose file is gone from disk", func(t *testing.T) {
		root := t.TempDir()
		keep := filepath.Join(root, "Alice_111", "chunks", "2024-01-01", "chunk_001.wav")
		gone := filepath.Join(root, "Alice_111", "chunks", "2024-01-01", "chunk_002.wav")
		writeFile(t, keep)
		writeFile(t, gone)

		rec, store := newTestReconciler(t, root)
		if err := rec.RunPass(); err != nil {
			t.Fatalf("RunPass() unexpected error: %v", err)
		}

		// Removed out-of-band, without the deletion service.
		if err := os.Remove(gone); err != nil {
			t.Fatalf("remove: %v", err)
		}

		got, err := registry.NewQueryService(store).ListChunks("111")
		if err != nil {
			t.Fatalf("ListChunks() unexpected error: %v", err)
		}
		want := []registry.DateChunks{
			{Date: "2024-01-01", Filenames: []string{"chunk_001.wav"}},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("ListChunks() = %+v, want %+v", got, want)
		}
	})

	t.Run("unknown user returns an empty list", func(t *testing.T) {
		store := testutil.NewTestStore(t)
		got, err := registry.NewQueryService(store).ListChunks("999")
		if err != nil {
			t.Fatalf("ListChunks() unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("ListChunks() = %+v, want empty", got)
		}
	})

	t.Run("does not mix users", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "Alice_111", "chunks", "2024-01-01", "chunk_001.wav"))
		writeFile(t, filepath.Join(root, "Bob_222", "chunks", "2024-01-01", "chunk_001.wav"))

		rec, store := newTestReconciler(t, root)
		if err := rec.RunPass(); err != nil {
			t.Fatalf("RunPass() unexpected error: %v", err)
		}

		got, err := registry.NewQueryService(store).ListChunks("111")
		if err != nil {
			t.Fatalf("ListChunks() unexpected error: %v", err)
		}
		if len(got) != 1 || len(got[0].Filenames) != 1 {
			t.Errorf("ListChunks() = %+v, want exactly alice's single chunk", got)
		}
	})
}

func TestQueryService_ListRecordings(t *testing.T) {
	t.Run("returns filenames ascending", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "Alice_111", "b_session.mp3"))
		writeFile(t, filepath.Join(root, "Alice_111", "a_session.mp3"))

		rec, store := newTestReconciler(t, root)
		if err := rec.RunPass(); err != nil {
			t.Fatalf("RunPass() unexpected error: %v", err)
		}

		got, err := registry.NewQueryService(store).ListRecordings("111")
		if err != nil {
			t.Fatalf("ListRecordings() unexpected error: %v", err)
		}
		want := []string{"a_session.mp3", "b_session.mp3"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("ListRecordings() = %v, want %v", got, want)
		}
	})
}
