package registry

import "errors"

// ErrNotFound is returned when a requested row does not exist, is soft-deleted,
// or is not owned by the caller. Callers must not be able to distinguish the
// three cases.
var ErrNotFound = errors.New("not found")
