package services

import (
	"errors"
	"fmt"

	"hoiku-portal/internal/policy"
	"hoiku-portal/internal/workflow"
)

var (
	ErrForbidden          = errors.New("access denied")
	ErrNotFound           = errors.New("not found")
	ErrInvalidFileType    = errors.New("invalid file type")
	ErrFileTooLarge       = errors.New("file too large")
	ErrMissingFile        = errors.New("file is required")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrInvalidInput       = errors.New("invalid input")

	ErrInvalidStatus     = workflow.ErrInvalidStatus
	ErrInvalidTransition = workflow.ErrInvalidTransition
)

// IsValidation reports whether err is a user-correctable input error.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidFileType, ErrMissingFile, ErrDuplicateEmail, ErrInvalidRole,
		ErrInvalidCategory, ErrWeakPassword, ErrPasswordTooLong, ErrInvalidInput, ErrInvalidStatus,
		ErrInvalidTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func forbidden(d policy.Decision) error {
	return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
}
