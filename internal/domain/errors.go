package domain

import "errors"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrCorruptSession       = errors.New("corrupt session state")
	ErrGeneratorUnavailable = errors.New("reply generator unavailable")
	ErrEmptyReply           = errors.New("reply generator returned empty text")
)
