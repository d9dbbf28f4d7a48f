package queue

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("queue entry not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)
