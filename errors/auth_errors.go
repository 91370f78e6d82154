// errors/auth_errors.go
package errors

import "errors"

var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrAuthorityUnavailable = errors.New("permission authority unavailable")
	ErrCacheFault           = errors.New("permission cache fault")
	ErrInternalServer       = errors.New("internal server error")
)
