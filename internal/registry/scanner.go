package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ChunkCandidate is one chunk file discovered on disk, before it is checked
// against the index.
type ChunkCandidate struct {
	UserID      string
	DisplayName string
	Date        string
	Filename    string
	Filepath    string
}

// RecordingCandidate is a legacy full-session recording discovered on disk.
type RecordingCandidate struct {
	UserID      string
	DisplayName string
	Filename    string
	Filepath    string
}

// ScanResult holds everything one pass over the recordings tree discovered.
// Results are ephemeral; the scanner keeps no state between passes.
type ScanResult struct {
	Chunks     []ChunkCandidate
	Recordings []RecordingCandidate
}

// Scanner walks the recordings tree written by the capture process:
//
//	<root>/<display_name>_<user_id>/chunks/<YYYY-MM-DD>/chunk_NNN.wav
//	<root>/<display_name>_<user_id>/<legacy>.mp3
//
// The scan is read-only. Missing directories at any level yield zero
// candidates, not an error. Symlinks are never followed, so a link cannot
// pull files from outside the root into the registry.
type Scanner struct {
	root string
}

// NewScanner creates a scanner over the given recordings root.
func NewScanner(root string) *Scanner {
	return &Scanner{root: root}
}

// Root returns the recordings root the scanner walks.
func (s *Scanner) Root() string {
	return s.root
}

// Scan performs one full sweep of the recordings tree.
func (s *Scanner) Scan() (*ScanResult, error) {
	result := &ScanResult{}

	userDirs, err := readDirTolerant(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading recordings root: %w", err)
	}

	for _, userDir := range userDirs {
		if !userDir.IsDir() {
			continue
		}

		displayName, userID, ok := splitUserDir(userDir.Name())
		if !ok {
			// Not a capture directory; skip silently.
			continue
		}

		userPath := filepath.Join(s.root, userDir.Name())
		if err := s.scanUserDir(result, userPath, displayName, userID); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// scanUserDir collects chunk and legacy recording candidates for one user.
func (s *Scanner) scanUserDir(result *ScanResult, userPath, displayName, userID string) error {
	entries, err := readDirTolerant(userPath)
	if err != nil {
		return fmt.Errorf("reading user directory %s: %w", userPath, err)
	}

	for _, entry := range entries {
		switch {
		case entry.IsDir() && entry.Name() == "chunks":
			if err := s.scanChunks(result, filepath.Join(userPath, "chunks"), displayName, userID); err != nil {
				return err
			}
		case entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), ".mp3"):
			result.Recordings = append(result.Recordings, RecordingCandidate{
				UserID:      userID,
				DisplayName: displayName,
				Filename:    entry.Name(),
				Filepath:    filepath.Join(userPath, entry.Name()),
			})
		}
	}

	return nil
}

// scanChunks walks the date buckets under one user's chunks directory.
func (s *Scanner) scanChunks(result *ScanResult, chunksPath, displayName, userID string) error {
	dateDirs, err := readDirTolerant(chunksPath)
	if err != nil {
		return fmt.Errorf("reading chunks directory %s: %w", chunksPath, err)
	}

	for _, dateDir := range dateDirs {
		// IsDir is lstat-based here, so a symlinked directory fails the
		// check and its target is never entered.
		if !dateDir.IsDir() {
			continue
		}

		date := dateDir.Name()
		datePath := filepath.Join(chunksPath, date)

		files, err := readDirTolerant(datePath)
		if err != nil {
			return fmt.Errorf("reading date bucket %s: %w", datePath, err)
		}

		for _, file := range files {
			if !file.Type().IsRegular() {
				continue
			}
			if matched, _ := filepath.Match("chunk_*.wav", file.Name()); !matched {
				continue
			}
			result.Chunks = append(result.Chunks, ChunkCandidate{
				UserID:      userID,
				DisplayName: displayName,
				Date:        date,
				Filename:    file.Name(),
				Filepath:    filepath.Join(datePath, file.Name()),
			})
		}
	}

	return nil
}

// splitUserDir parses "<display_name>_<user_id>" on the last underscore.
// Both parts must be non-empty.
func splitUserDir(name string) (displayName, userID string, ok bool) {
	idx := strings.LastIndex(name, "_")
	if idx <= 0 || idx == len(name)-1 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}

// readDirTolerant reads a directory, treating a missing path as empty.
func readDirTolerant(path string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return entries, nil
}
