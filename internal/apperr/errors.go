package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrPublishInProgress = errors.New("publish already in progress")
)
