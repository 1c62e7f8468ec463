package pyramid

import "errors"

// Error kinds. Every failure returned by this module wraps exactly one of
// these so callers can classify it with errors.Is.
var (
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrDecode            = errors.New("decode error")
	ErrBounds            = errors.New("window out of bounds")
	ErrBackend           = errors.New("backend error")
	ErrIO                = errors.New("io error")
	ErrNotFound          = errors.New("not found")
)
