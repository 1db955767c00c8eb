package service

import "errors"

// Common service errors
var (
	// ErrPermissionDenied is returned when a user doesn't have permission for an action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrUnauthorized is returned when the caller carries no tenant context
	ErrUnauthorized = errors.New("unauthorized")
)

// Domain errors
var (
	ErrOpportunityNotFound = errors.New("opportunity not found")
	ErrLineItemNotFound    = errors.New("line item not found")
	ErrGoalNotFound        = errors.New("goal not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrAgingConfigNotFound = errors.New("aging configuration not found")

	// ErrDuplicateOpportunityName is returned when the name is already used in the org, ignoring case
	ErrDuplicateOpportunityName = errors.New("an opportunity with this name already exists")

	// ErrCrossTenant is returned when referenced records belong to another org
	ErrCrossTenant = errors.New("referenced record belongs to another organization")

	// ErrOpportunityLocked is returned when another writer holds the opportunity lock
	ErrOpportunityLocked = errors.New("opportunity is being modified, try again")

	// ErrConcurrentUpdate is returned when the opportunity changed between read and write
	ErrConcurrentUpdate = errors.New("opportunity was modified concurrently, reload and try again")
)
