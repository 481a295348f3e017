package errs

import "errors"

var (
	ErrValidation   = errors.New("validation failed")
	ErrUpstream     = errors.New("upstream call failed")
	ErrNotFound     = errors.New("not found")
	ErrEmptyMessage = errors.New("empty message")
	ErrPersist      = errors.New("persist conversation")
)
