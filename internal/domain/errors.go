package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingConfiguration = errors.New("missing configuration")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrExternalService      = errors.New("external service error")
	ErrMalformedInput       = errors.New("malformed input")
)

// MissingConfigurationError lists every required setting that was absent.
type MissingConfigurationError struct {
	Names []string
}

func (e *MissingConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Names, ", "))
}

func (e *MissingConfigurationError) Unwrap() error { return ErrMissingConfiguration }

// MalformedLabelError reports a label file or entry that does not have the expected shape.
// Entry is the zero-based entry index, or -1 when the whole file is unreadable.
type MalformedLabelError struct {
	Source string
	Entry  int
	Reason string
}

func (e *MalformedLabelError) Error() string {
	if e.Entry >= 0 {
		return fmt.Sprintf("malformed label file %s (entry %d): %s", e.Source, e.Entry, e.Reason)
	}
	return fmt.Sprintf("malformed label file %s: %s", e.Source, e.Reason)
}

func (e *MalformedLabelError) Unwrap() error { return ErrMalformedInput }

// ServiceError wraps a failure returned by a storage, search, embedding or chat call.
type ServiceError struct {
	Service    string
	Op         string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (status=%d): %v", e.Service, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() []error { return []error{ErrExternalService, e.Err} }

// NewServiceError wraps err unless it is nil.
func NewServiceError(service, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Service: service, Op: op, Err: err}
}

// InvalidArgument returns an error wrapping ErrInvalidArgument.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}
