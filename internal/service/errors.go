package service

import "errors"

var (
	ErrSessionNotFound   = errors.New("assistant session not found")
	ErrInvalidSessionID  = errors.New("invalid session id")
	ErrInvalidLanguage   = errors.New("unsupported language")
	ErrInvalidPreference = errors.New("invalid preference")
	ErrInvalidLead       = errors.New("invalid lead submission")
	ErrTooManySessions   = errors.New("too many assistant sessions")
)
