package domain

import "errors"

var (
	ErrMissingIdentifier = errors.New("tick is missing identifier field")
	ErrClientNotFound    = errors.New("client not found")
	ErrNoInstruments     = errors.New("no instruments found for user")
	ErrNoUserDetails     = errors.New("user details snapshot not available")
	ErrQueueClosed       = errors.New("delivery queue is closed")
	ErrConnectionClosed  = errors.New("connection is closed")
)
