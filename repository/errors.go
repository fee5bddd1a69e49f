package repository

import "errors"

// ErrNotFound is returned when a lookup misses. It wraps the underlying GORM
// record-not-found error at the repository boundary so callers never depend
// on the ORM directly.
var ErrNotFound = errors.New("record not found")
