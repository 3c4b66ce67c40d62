package domain

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// ErrMissingPhone marks a reservation that cannot be notified until an operator edits it.
	ErrMissingPhone = errors.New("Telefon numarası eksik")
)
