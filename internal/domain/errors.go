package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrLockHeld           = errors.New("lock already held")
	ErrTickInProgress     = errors.New("tick already in progress")
	ErrNoSnapshot         = errors.New("no snapshot extracted")
	ErrInvalidDestination = errors.New("invalid notification destination")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
)
