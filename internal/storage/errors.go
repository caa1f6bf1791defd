package storage

import "errors"

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidData   = errors.New("invalid data")
	ErrStorageInit   = errors.New("storage initialization failed")
	ErrFileOperation = errors.New("file operation failed")
	ErrUnavailable   = errors.New("storage backend unavailable")
)
