package models

import "errors"

var (
	// ErrNotFound is returned by stores when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned by stores when a unique key is already taken
	ErrDuplicate = errors.New("duplicate")
)
