package domain

import "errors"

// Errors that terminate a run. Callers wrap them with context and match with errors.Is.
var (
	ErrInputNotFound = errors.New("input not found")
	ErrUsage         = errors.New("usage error")
	ErrForgeRequest  = errors.New("forge request failed")
	ErrOutputWrite   = errors.New("output write failed")
)
