package shared

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the machine-readable category of a DomainError.
// The set is closed: every failure leaving the core carries one of these.
type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindNotFound           Kind = "not_found"
	KindDuplicateEntry     Kind = "duplicate_entry"
	KindForeignKey         Kind = "foreign_key_constraint"
	KindTableNotFound      Kind = "table_not_found"
	KindColumnNotFound     Kind = "column_not_found"
	KindLockTimeout        Kind = "lock_timeout"
	KindDeadlock           Kind = "deadlock"
	KindConnectionLost     Kind = "connection_lost"
	KindTooManyConnections Kind = "too_many_connections"
	KindAccessDenied       Kind = "access_denied"
	KindDatabaseError      Kind = "database_error"
	KindDatabaseException  Kind = "database_exception"
	KindOrphanedProduct    Kind = "orphaned_product"
	KindTransferFailed     Kind = "transfer_failed"
	KindGenerationFailed   Kind = "generation_failed"
)

// AllKinds lists every kind in the taxonomy.
var AllKinds = []Kind{
	KindValidation, KindNotFound, KindDuplicateEntry, KindForeignKey,
	KindTableNotFound, KindColumnNotFound, KindLockTimeout, KindDeadlock,
	KindConnectionLost, KindTooManyConnections, KindAccessDenied,
	KindDatabaseError, KindDatabaseException, KindOrphanedProduct,
	KindTransferFailed, KindGenerationFailed,
}

// IsStorage reports whether the kind originates from the storage classifier
func (k Kind) IsStorage() bool {
	switch k {
	case KindDuplicateEntry, KindForeignKey, KindTableNotFound, KindColumnNotFound,
		KindLockTimeout, KindDeadlock, KindConnectionLost, KindTooManyConnections,
		KindAccessDenied, KindDatabaseError:
		return true
	}
	return false
}

// FieldError describes a single rejected input field
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
	Value  any    `json:"value,omitempty"`
}

// DomainError represents a domain-level error
type DomainError struct {
	Kind    Kind         `json:"kind"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
	Count   int          `json:"count,omitempty"`

	cause error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying storage or runtime error, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches another DomainError of the same kind and message.
// A target with an empty message matches any error of its kind.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// Field returns the first field error, if any
func (e *DomainError) Field() (FieldError, bool) {
	if len(e.Errors) == 0 {
		return FieldError{}, false
	}
	return e.Errors[0], true
}

// NewDomainError creates a new domain error
func NewDomainError(kind Kind, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Message: message,
	}
}

// WrapError creates a domain error that keeps the original cause for logging
func WrapError(kind Kind, message string, cause error) *DomainError {
	return &DomainError{
		Kind:    kind,
		Message: message,
		cause:   cause,
	}
}

// NewValidationError creates a validation error for a single field
func NewValidationError(field, reason string, value any) *DomainError {
	return &DomainError{
		Kind:    KindValidation,
		Message: fmt.Sprintf("invalid %s: %s", field, reason),
		Errors:  []FieldError{{Field: field, Reason: reason, Value: value}},
		Count:   1,
	}
}

// NewValidationErrors aggregates several field errors into one error.
// It returns nil when fields is empty.
func NewValidationErrors(fields []FieldError) *DomainError {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	return &DomainError{
		Kind:    KindValidation,
		Message: fmt.Sprintf("validation failed for %d field(s): %s", len(fields), strings.Join(names, ", ")),
		Errors:  fields,
		Count:   len(fields),
	}
}

// KindOf returns the kind carried by err.
// Errors that are not DomainErrors are reported as database_exception.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindDatabaseException
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether the caller may retry the operation unchanged.
// Lock waits and deadlocks are transient store conditions, not corruption.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindLockTimeout, KindDeadlock:
		return true
	}
	return false
}

// AsDomainError converts any error into a DomainError.
// Foreign errors become database_exception so nothing untyped leaves the core.
func AsDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return WrapError(KindDatabaseException, "unexpected error", err)
}

// Common domain errors
var (
	ErrNotFound          = NewDomainError(KindNotFound, "")
	ErrValidation        = NewDomainError(KindValidation, "")
	ErrDuplicateEntry    = NewDomainError(KindDuplicateEntry, "")
	ErrCartLineNotFound  = NewDomainError(KindNotFound, "cart line not found")
	ErrOrderNotFound     = NewDomainError(KindNotFound, "order not found")
	ErrProductNotFound   = NewDomainError(KindNotFound, "product not found")
	ErrEmptyCart         = NewValidationError("cart", "cart is empty", nil)
	ErrInvoiceExhausted  = NewDomainError(KindGenerationFailed, "could not generate a unique invoice number")
	ErrTransferFailed    = NewDomainError(KindTransferFailed, "")
	ErrCheckoutDuplicate = NewDomainError(KindDuplicateEntry, "checkout request already submitted")
)
