package web

import (
	"errors"
	"net/http"

	"recvault/internal/auth"
	"recvault/internal/model"
	"recvault/internal/registry"
)

// handleLogin redirects the browser to Discord's authorization page.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.discord.AuthURL(), http.StatusTemporaryRedirect)
}

// handleCallback completes the OAuth flow: exchange the code, fetch the user,
// record them in the index, and set the session cookie. Any failure sends the
// browser back to the front page without a session.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	token, err := s.discord.ExchangeCode(r.Context(), code)
	if err != nil {
		s.logger.Warn("oauth code exchange failed", "error", err)
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	user, err := s.discord.FetchUser(r.Context(), token)
	if err != nil {
		s.logger.Warn("fetching discord user failed", "error", err)
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	err = s.store.UpsertUser(&model.User{
		UserID:      user.ID,
		DisplayName: user.Username,
		AvatarURL:   user.AvatarURL(),
		LastSeen:    s.clock.Now(),
	})
	if err != nil {
		s.logger.Error("upserting user failed", "user", user.ID, "error", err)
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	signed, err := s.sessions.Issue(auth.Identity{
		UserID:      user.ID,
		DisplayName: user.Username,
		AvatarURL:   user.AvatarURL(),
	})
	if err != nil {
		s.logger.Error("issuing session failed", "user", user.ID, "error", err)
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	s.logger.Info("user logged in", "user", user.ID, "name", user.Username)
	http.SetCookie(w, s.sessions.Cookie(signed))
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// handleLogout clears the session cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.sessions.ClearCookie())
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// handleMe returns the authenticated caller's identity.
func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, id *auth.Identity) {
	s.writeJSON(w, id)
}

// handleListChunks returns the caller's chunks grouped by date. The "dates"
// array carries the ordering (newest first); JSON object keys do not.
func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	grouped, err := s.query.ListChunks(id.UserID)
	if err != nil {
		s.logger.Error("listing chunks failed", "user", id.UserID, "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	perDate := make(map[string][]string, len(grouped))
	dates := make([]string, 0, len(grouped))
	for _, dc := range grouped {
		perDate[dc.Date] = dc.Filenames
		dates = append(dates, dc.Date)
	}

	s.writeJSON(w, map[string]any{
		"user_id":         id.UserID,
		"dates":           dates,
		"chunks_per_date": perDate,
	})
}

// handleListRecordings returns the caller's legacy full recordings.
func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	files, err := s.query.ListRecordings(id.UserID)
	if err != nil {
		s.logger.Error("listing recordings failed", "user", id.UserID, "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, map[string]any{
		"user_id":    id.UserID,
		"recordings": files,
	})
}

// handleDeleteChunk removes one chunk: archive if configured, delete the
// file, tombstone the index row.
func (s *Server) handleDeleteChunk(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	date := r.PathValue("date")
	filename := r.PathValue("filename")
	if !validSegment(date) || !validSegment(filename) {
		s.jsonError(w, "invalid path", http.StatusBadRequest)
		return
	}

	if _, err := s.deleter.DeleteChunk(id.UserID, date, filename); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			s.jsonError(w, "chunk not found", http.StatusNotFound)
			return
		}
		s.logger.Error("deleting chunk failed", "user", id.UserID, "date", date, "file", filename, "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, map[string]any{"ok": true, "deleted": date + "/" + filename})
}

// handleDeleteRecording removes one legacy recording.
func (s *Server) handleDeleteRecording(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	filename := r.PathValue("filename")
	if !validSegment(filename) {
		s.jsonError(w, "invalid path", http.StatusBadRequest)
		return
	}

	if _, err := s.deleter.DeleteRecording(id.UserID, filename); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			s.jsonError(w, "recording not found", http.StatusNotFound)
			return
		}
		s.logger.Error("deleting recording failed", "user", id.UserID, "file", filename, "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, map[string]any{"ok": true, "deleted": filename})
}
