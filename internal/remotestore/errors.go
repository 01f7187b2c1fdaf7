package remotestore

import (
	"errors"
	"fmt"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingBaseURL  = errors.New("remote base url is required")

	// ErrInvalidLocalID indicates that a record identifier is empty or exceeds storage bounds.
	ErrInvalidLocalID = errors.New("remotestore: invalid local id")
	// ErrInvalidContent indicates that a record content blob is not a JSON object.
	ErrInvalidContent = errors.New("remotestore: invalid content")
	// ErrInvalidLimit indicates that a non-positive limit was requested.
	ErrInvalidLimit = errors.New("remotestore: invalid limit")
)

const maxIdentifierLength = 190

// ServiceError carries a stable code of the form "<operation>.<reason>".
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ErrorCode extracts the service code from err, or "" when none is attached.
func ErrorCode(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return ""
}

// HTTPError reports a non-success response from the remote service.
type HTTPError struct {
	StatusCode int
	Reason     string
	Code       string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remotestore: http %d: %s (%s)", e.StatusCode, e.Reason, e.Code)
	}
	return fmt.Sprintf("remotestore: http %d: %s", e.StatusCode, e.Reason)
}

func (e *HTTPError) retryable() bool {
	return e.StatusCode >= 500
}
