package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrOverlap           = errors.New("time range overlaps an existing reservation")
	ErrLockTimeout       = errors.New("court is busy")
	ErrDuplicateSlot     = errors.New("slot already booked")
	ErrNotFound          = errors.New("not found")
	ErrUpstream          = errors.New("upstream unavailable")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError carries per-field messages. It matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// OrNil lets callers accumulate fields and return the result unconditionally.
func (e *ValidationError) OrNil() error {
	if e == nil || e.Empty() {
		return nil
	}
	return e
}

// IsRetryable reports whether the caller may retry the same request unchanged.
func IsRetryable(err error) bool {
	return errors.IsAny(err, ErrLockTimeout, ErrUpstream)
}
