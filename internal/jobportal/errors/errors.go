package errors

import (
	"fmt"
)

var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrInvalidFilter = fmt.Errorf("invalid filter")
	// ErrConflict signals a duplicate-key race in create-or-fetch paths.
	// Repositories recover from it by re-fetching; it never reaches callers.
	ErrConflict     = fmt.Errorf("concurrency conflict")
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrForbidden    = fmt.Errorf("forbidden")
)
