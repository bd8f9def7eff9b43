package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidCanvas     = errors.New("invalid canvas")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrUnavailable       = errors.New("unavailable")
)
