package game

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomExists          = errors.New("room already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidSessionState = errors.New("invalid session state")
	ErrAlreadyActive       = errors.New("game already active")
)
