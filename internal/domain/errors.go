package domain

import "errors"

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrCaseNotFound          = errors.New("case not found")
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	ErrNoCallID              = errors.New("call id is required")
	ErrInvalidCoordinates    = errors.New("invalid coordinates")
)
