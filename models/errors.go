package models

import "errors"

// Workflow error taxonomy. Every error the lifecycle core returns is one of
// these sentinels (possibly wrapped), so the API layer can translate each
// failure into a specific message instead of a generic server error.
var (
	ErrIssueNotFound       = errors.New("issue not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidState        = errors.New("operation not allowed in current status")
	ErrUnauthorized        = errors.New("actor lacks the required relationship to this issue")
	ErrForbiddenTransition = errors.New("status transition reserved for employee action")
	ErrAlreadyAccepted     = errors.New("issue already accepted by another employee")
	ErrNotAssignedToYou    = errors.New("issue assigned to a different employee")
	ErrLocationMismatch    = errors.New("resolution location outside the allowed radius")
	ErrNoEligibleEmployees = errors.New("no active employees for this department")
	ErrInvalidAssignee     = errors.New("target user cannot be assigned issues")
	ErrPointsAward         = errors.New("failed to award resolution points")
)
