package registry

import (
	"fmt"
	"os"
	"sort"
)

// DateChunks is one date bucket of chunk filenames, ordered for display.
type DateChunks struct {
	Date      string
	Filenames []string
}

// QueryService is the read-only projection of the index used by HTTP
// handlers. It has no side effects and is safe to call concurrently; clients
// poll it.
type QueryService struct {
	store Store
}

// NewQueryService creates a query service over the given store.
func NewQueryService(store Store) *QueryService {
	return &QueryService{store: store}
}

// ListChunks returns the user's non-deleted chunks grouped by date, dates
// descending and filenames ascending within a date. Rows whose file no longer
// exists on disk are dropped: the index trails reality by up to one
// reconciliation interval, and files can be removed out-of-band without going
// through the deletion service.
func (q *QueryService) ListChunks(userID string) ([]DateChunks, error) {
	chunks, err := q.store.ListChunksByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks for %s: %w", userID, err)
	}

	byDate := make(map[string][]string)
	for _, c := range chunks {
		if !fileExists(c.Filepath) {
			continue
		}
		byDate[c.Date] = append(byDate[c.Date], c.Filename)
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	result := make([]DateChunks, 0, len(dates))
	for _, date := range dates {
		files := byDate[date]
		sort.Strings(files)
		result = append(result, DateChunks{Date: date, Filenames: files})
	}

	return result, nil
}

// ListRecordings returns the user's non-deleted legacy recording filenames,
// ascending, with the same disk-existence check as ListChunks.
func (q *QueryService) ListRecordings(userID string) ([]string, error) {
	recs, err := q.store.ListRecordingsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("listing recordings for %s: %w", userID, err)
	}

	files := make([]string, 0, len(recs))
	for _, rec := range recs {
		if !fileExists(rec.Filepath) {
			continue
		}
		files = append(files, rec.Filename)
	}
	sort.Strings(files)

	return files, nil
}

// fileExists reports whether path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
