// errors/emergency_errors.go
package errors

import "errors"

var (
	ErrReasonTooShort     = errors.New("justification must be at least 10 characters")
	ErrAuditWriteFailed   = errors.New("audit record could not be written")
	ErrNoActiveGrant      = errors.New("no active emergency access grant")
	ErrInvalidRequestData = errors.New("invalid request data")
	ErrInvalidLockRequest = errors.New("invalid record lock request")
)
