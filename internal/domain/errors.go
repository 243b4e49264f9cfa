package domain

import "errors"

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrInvalidState   = errors.New("invalid sync state")
	ErrUnknownEvent   = errors.New("unknown event")

	ErrInvalidSubmission = errors.New("invalid voting submission")
)
