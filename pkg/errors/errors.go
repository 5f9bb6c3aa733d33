package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Module errors wrap exactly one of these so that callers can
// classify any failure with errors.Is without knowing the module.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrUpstream   = errors.New("upstream failure")
)

// Kind returns the kind sentinel err wraps, or nil for unclassified errors.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrForbidden, ErrUpstream} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// New creates a module sentinel of the given kind.
func New(kind error, message string) error {
	return &kindError{kind: kind, message: message}
}

type kindError struct {
	kind    error
	message string
}

func (e *kindError) Error() string { return e.message }
func (e *kindError) Unwrap() error { return e.kind }

// Upstream wraps a collaborator failure (storage, cache, broker).
func Upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}

// ── Validation ──

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every rejected field of one request.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ErrValidation.Error()
	}
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Is makes ValidationErrors classify as ErrValidation.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Add appends a field error.
func (v *ValidationErrors) Add(field, message string, value interface{}, rule string) {
	*v = append(*v, ValidationError{Field: field, Message: message, Value: value, Rule: rule})
}

// OrNil returns nil when nothing was collected.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Invalid is a single-field shortcut.
func Invalid(field, message string, value interface{}) error {
	return ValidationErrors{{Field: field, Message: message, Value: value}}
}
