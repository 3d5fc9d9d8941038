package registry

import (
	"fmt"
	"io"
	"os"
	"path"

	"recvault/internal/metrics"
)

// DeletionService performs the hard-delete protocol: archive (optional),
// remove the file, flip the index row's deletion flag. The flag transition is
// one-way; a deleted identity can never re-enter the registry because
// insert-if-absent treats the soft-deleted row as present.
type DeletionService struct {
	store     Store
	vault     ArchiveVault // nil disables archival
	encryptor Encryptor    // nil or unconfigured disables archive encryption
	logger    Logger
	metrics   *metrics.Metrics
}

// NewDeletionService creates a deletion service. vault, encryptor and metrics
// may be nil.
func NewDeletionService(store Store, vault ArchiveVault, encryptor Encryptor, logger Logger, m *metrics.Metrics) *DeletionService {
	return &DeletionService{
		store:     store,
		vault:     vault,
		encryptor: encryptor,
		logger:    logger,
		metrics:   m,
	}
}

// DeleteChunk deletes one chunk owned by userID and returns the path of the
// removed file. A row that is absent, already deleted, or owned by another
// user yields ErrNotFound.
//
// Ordering is archive, file removal, then flag. A crash between removal and
// flag leaves the flag false with the file gone; the query path's existence
// check hides the row, and re-running the delete corrects the index.
func (d *DeletionService) DeleteChunk(userID, date, filename string) (string, error) {
	chunk, err := d.store.GetChunk(userID, date, filename)
	if err != nil {
		return "", fmt.Errorf("looking up chunk: %w", err)
	}
	if chunk == nil || chunk.UserID != userID {
		return "", ErrNotFound
	}

	d.archive(path.Join(userID, date, filename), chunk.Filepath)
	d.removeFile(chunk.Filepath)

	if err := d.store.MarkChunkDeleted(chunk.ID); err != nil {
		return "", fmt.Errorf("marking chunk deleted: %w", err)
	}

	if d.metrics != nil {
		d.metrics.ChunksDeleted.Inc()
	}
	d.logger.Info("chunk deleted", "user", userID, "date", date, "file", filename)
	return chunk.Filepath, nil
}

// DeleteRecording deletes one legacy recording owned by userID.
func (d *DeletionService) DeleteRecording(userID, filename string) (string, error) {
	rec, err := d.store.GetRecording(userID, filename)
	if err != nil {
		return "", fmt.Errorf("looking up recording: %w", err)
	}
	if rec == nil || rec.UserID != userID {
		return "", ErrNotFound
	}

	d.archive(path.Join(userID, filename), rec.Filepath)
	d.removeFile(rec.Filepath)

	if err := d.store.MarkRecordingDeleted(rec.ID); err != nil {
		return "", fmt.Errorf("marking recording deleted: %w", err)
	}

	d.logger.Info("recording deleted", "user", userID, "file", filename)
	return rec.Filepath, nil
}

// archive copies the file into the vault before it is removed. Failures are
// logged and swallowed: the index must stay authoritative, so the deletion
// proceeds regardless.
func (d *DeletionService) archive(key, filepath string) {
	if d.vault == nil {
		return
	}

	f, err := os.Open(filepath)
	if err != nil {
		d.recordArchiveError("opening file for archive", key, err)
		return
	}
	defer f.Close()

	if d.encryptor != nil && d.encryptor.IsConfigured() {
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(d.encryptor.Encrypt(f, pw))
		}()
		err = d.vault.Put(key+".age", pr)
	} else {
		err = d.vault.Put(key, f)
	}
	if err != nil {
		d.recordArchiveError("uploading to archive vault", key, err)
		return
	}

	d.logger.Debug("audio archived", "key", key)
}

func (d *DeletionService) recordArchiveError(msg, key string, err error) {
	if d.metrics != nil {
		d.metrics.ArchiveErrors.Inc()
	}
	d.logger.Warn(msg+" failed", "key", key, "error", err)
}

// removeFile removes the file from disk. A failure (typically the file is
// already gone) is logged and tolerated so the flag transition still happens.
func (d *DeletionService) removeFile(filepath string) {
	if err := os.Remove(filepath); err != nil && !os.IsNotExist(err) {
		d.logger.Warn("removing file failed", "path", filepath, "error", err)
	}
}
