package web

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"recvault/internal/auth"
)

// streamChunkSize is how much audio is copied per write. Clients seek
// aggressively, so responses are served in pieces rather than one io.Copy
// that would keep reading after the client is gone.
const streamChunkSize = 256 * 1024

// byteRange is a resolved, inclusive byte range within a file.
type byteRange struct {
	start int64
	end   int64
}

func (r byteRange) length() int64 { return r.end - r.start + 1 }

// errUnsatisfiableRange marks a Range header that parses but cannot be
// satisfied against the file, and malformed headers, both of which answer 416.
var errUnsatisfiableRange = fmt.Errorf("unsatisfiable range")

// parseRange resolves a single-range Range header against a file of the
// given size. Multi-range requests are not supported; only the first range
// is honored. The end position is clamped to the last byte of the file.
func parseRange(header string, size int64) (byteRange, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return byteRange{}, errUnsatisfiableRange
	}
	spec, _, _ = strings.Cut(spec, ",")

	startStr, endStr, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok || startStr == "" {
		return byteRange{}, errUnsatisfiableRange
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return byteRange{}, errUnsatisfiableRange
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return byteRange{}, errUnsatisfiableRange
		}
		if end >= size {
			end = size - 1
		}
	}

	return byteRange{start: start, end: end}, nil
}

// handleChunkAudio streams one chunk file, honoring a single byte range.
// The index row is authoritative for which file to serve; the path never
// comes from request segments directly.
func (s *Server) handleChunkAudio(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	date := r.PathValue("date")
	filename := r.PathValue("filename")
	if !validSegment(date) || !validSegment(filename) {
		s.jsonError(w, "invalid path", http.StatusBadRequest)
		return
	}

	chunk, err := s.store.GetChunk(id.UserID, date, filename)
	if err != nil {
		s.logger.Error("looking up chunk failed", "user", id.UserID, "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if chunk == nil {
		s.jsonError(w, "chunk not found", http.StatusNotFound)
		return
	}

	s.streamFile(w, r, chunk.Filepath, filename)
}

// handleRecordingAudio streams one legacy full recording.
func (s *Server) handleRecordingAudio(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	filename := r.PathValue("filename")
	if !validSegment(filename) {
		s.jsonError(w, "invalid path", http.StatusBadRequest)
		return
	}

	rec, err := s.store.GetRecording(id.UserID, filename)
	if err != nil {
		s.logger.Error("looking up recording failed", "user", id.UserID, "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		s.jsonError(w, "recording not found", http.StatusNotFound)
		return
	}

	s.streamFile(w, r, rec.Filepath, filename)
}

// streamFile serves the file either whole (200) or as a single byte range
// (206). A row can outlive its file by up to one reconciliation interval, so
// a missing file is a 404, not a 500.
func (s *Server) streamFile(w http.ResponseWriter, r *http.Request, filepath, filename string) {
	f, err := os.Open(filepath)
	if err != nil {
		if os.IsNotExist(err) {
			s.jsonError(w, "file not found", http.StatusNotFound)
			return
		}
		s.logger.Error("opening audio file failed", "path", filepath, "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.logger.Error("stat audio file failed", "path", filepath, "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	size := info.Size()

	w.Header().Set("Content-Type", contentTypeFor(filename))
	w.Header().Set("Accept-Ranges", "bytes")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		s.copyRange(w, f, size)
		return
	}

	rng, err := parseRange(rangeHeader, size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		s.jsonError(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if _, err := f.Seek(rng.start, io.SeekStart); err != nil {
		s.logger.Error("seeking audio file failed", "path", filepath, "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.start, rng.end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(rng.length(), 10))
	w.WriteHeader(http.StatusPartialContent)
	s.copyRange(w, f, rng.length())
}

// copyRange copies exactly n bytes in streamChunkSize pieces. Write errors
// mean the client went away; stop without logging noise.
func (s *Server) copyRange(w http.ResponseWriter, f *os.File, n int64) {
	buf := make([]byte, streamChunkSize)
	var sent int64
	for sent < n {
		want := int64(len(buf))
		if remaining := n - sent; remaining < want {
			want = remaining
		}
		read, err := f.Read(buf[:want])
		if read > 0 {
			written, werr := w.Write(buf[:read])
			sent += int64(written)
			if werr != nil {
				break
			}
		}
		if err != nil {
			break
		}
	}
	if s.metrics != nil {
		s.metrics.BytesStreamed.Add(float64(sent))
	}
}

// contentTypeFor maps chunk and recording filenames to their media type.
func contentTypeFor(filename string) string {
	if strings.HasSuffix(filename, ".wav") {
		return "audio/wav"
	}
	return "audio/mpeg"
}
