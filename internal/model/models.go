package model

import "time"

// User is an authenticated account, created or refreshed on every login.
// Users are never deleted by this service.
type User struct {
	UserID      string // Stable opaque identity from the identity provider
	DisplayName string
	AvatarURL   string
	LastSeen    time.Time
}

// Chunk is one voice-activity-segmented audio file belonging to a user and a
// calendar date. The row is created exactly once when the file is first
// observed on disk and is never physically removed: deletion flips IsDeleted.
type Chunk struct {
	ID        string // UUID
	UserID    string
	Date      string // YYYY-MM-DD bucket name, taken verbatim from the directory
	Filename  string
	Filepath  string // Absolute path on the recordings volume
	CreatedAt time.Time
	IsDeleted bool
}

// LegacyRecording is a full-session recording from before chunked capture.
// Identity is (user, filename); it shares the chunk registry's soft-delete
// lifecycle.
type LegacyRecording struct {
	ID        string // UUID
	UserID    string
	Filename  string
	Filepath  string
	CreatedAt time.Time
	IsDeleted bool
}
