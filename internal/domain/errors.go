package domain

import "errors"

// Error kinds surfaced by the service layer. Callers match with errors.Is and
// map each kind to a transport code; wrapped messages carry the detail.
var (
	ErrValidation = errors.New("validation failed")
	ErrAuth       = errors.New("unauthorized")
	ErrConflict   = errors.New("conflict")
	ErrCapacity   = errors.New("capacity conflict")
	ErrNotFound   = errors.New("not found")
)
