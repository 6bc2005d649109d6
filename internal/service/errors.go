package service

import (
	"errors"
	"fmt"

	"github.com/Horth168/staff-attendance-app/internal/config"
	"github.com/Horth168/staff-attendance-app/internal/livecache"
)

// Validation and guard errors are raised before anything is written.
var (
	ErrValidation        = errors.New("validation error")
	ErrDuplicateName     = fmt.Errorf("%w: a staff member with this name already exists", ErrValidation)
	ErrEmptyName         = fmt.Errorf("%w: staff name is empty", ErrValidation)
	ErrPastDate          = fmt.Errorf("%w: date is in the past", ErrValidation)
	ErrInvalidDate       = fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	ErrNotFound          = errors.New("staff member not found")
	ErrInvalidTransition = errors.New("invalid transition")
)

var (
	// ErrWriteFailure marks a create or update the store did not complete.
	ErrWriteFailure = errors.New("write failure")
	// ErrStatusDiverged is joined to ErrWriteFailure when the attendance event
	// was stored but the staff status update was not.
	ErrStatusDiverged = errors.New("attendance event recorded but staff status not updated")
	ErrSyncFailure    = livecache.ErrSyncFailure
	ErrConfiguration  = config.ErrConfiguration
)

func writeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrWriteFailure, op, err)
}
