package domain

import "errors"

// ErrBadGeometry reports an invalid chunk size/overlap combination.
// It is raised before any I/O happens.
var ErrBadGeometry = errors.New("chunk overlap must satisfy 0 <= overlap < chunk size")
