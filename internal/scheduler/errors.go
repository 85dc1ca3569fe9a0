package scheduler

import "errors"

// Validation errors. Inputs that fail validation are rejected before any
// state changes.
var (
	ErrInvalidWorkItemType = errors.New("invalid_work_item_type")
	ErrMissingField        = errors.New("missing_required_field")
	ErrTooManyInputs       = errors.New("too_many_inputs")
	ErrDescriptionTooLong  = errors.New("description_too_long")
	ErrInvalidStopReason   = errors.New("invalid_stop_reason")
)

// Lookup errors. Callers routinely race against completion, so these are
// expected outcomes rather than faults.
var (
	ErrAllocationNotFound = errors.New("allocation_not_found")
	ErrItemNotFound       = errors.New("item_not_found")
)

// IsNotFound reports whether err is a lookup failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAllocationNotFound) || errors.Is(err, ErrItemNotFound)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidWorkItemType) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrTooManyInputs) ||
		errors.Is(err, ErrDescriptionTooLong) ||
		errors.Is(err, ErrInvalidStopReason)
}
