package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrPositionExists = errors.New("position already exists")
	ErrInvalidOrder   = errors.New("invalid order parameters")
	ErrSigningFailed  = errors.New("signing failed")
	ErrWSDisconnect   = errors.New("websocket disconnected")
)
