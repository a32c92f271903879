package store

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a missing blob or an unknown identity.
//
// Returned by [Storage.Load] for absent keys and by [Database.Get] /
// [Database.GetByID] for identities that exist nowhere in the store.
// Recoverable: callers are expected to handle it.
type NotFoundError struct {
	// OID is the storage key that was looked up.
	OID OID

	// DomainID is the application-level id, when the lookup started from one.
	DomainID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.DomainID != "" {
		return fmt.Sprintf("not found: %q (oid %s)", e.DomainID, e.OID)
	}
	return fmt.Sprintf("not found: oid %s", e.OID)
}

// IsNotFound reports whether err is a NotFoundError.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// InvariantCode categorizes invariant violations.
type InvariantCode string

const (
	// ErrCodeDuplicateIdentity indicates a second instance for an OID that
	// already has a live instance, or re-registering an object that already
	// carries an identity.
	ErrCodeDuplicateIdentity InvariantCode = "DUPLICATE_IDENTITY"

	// ErrCodeMissingIdentity indicates an operation that requires an OID or
	// a declared id on an object that has none.
	ErrCodeMissingIdentity InvariantCode = "MISSING_IDENTITY"

	// ErrCodeForeignObject indicates an object owned by a different Database.
	ErrCodeForeignObject InvariantCode = "FOREIGN_OBJECT"

	// ErrCodeIndexKeyMismatch indicates an index key that does not match the
	// index's declared derivation rule.
	ErrCodeIndexKeyMismatch InvariantCode = "INDEX_KEY_MISMATCH"

	// ErrCodeIndexTypeMismatch indicates an object or key object whose type
	// differs from the type the index was declared over.
	ErrCodeIndexTypeMismatch InvariantCode = "INDEX_TYPE_MISMATCH"

	// ErrCodeMalformedRecord indicates a stored record missing reserved
	// fields or carrying values of the wrong shape.
	ErrCodeMalformedRecord InvariantCode = "MALFORMED_RECORD"

	// ErrCodeBadValue indicates a value shape the serializer does not
	// support, or a structured value missing its required id field.
	ErrCodeBadValue InvariantCode = "BAD_VALUE"
)

// InvariantError is a programmer error: the engine fails fast and never
// silently corrects it. Not user-recoverable.
type InvariantError struct {
	// Code identifies the violated invariant.
	Code InvariantCode

	// Message is a human-readable description.
	Message string

	// OID identifies the affected object, when known.
	OID OID
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	if e.OID != "" {
		return fmt.Sprintf("%s: %s (oid=%s)", e.Code, e.Message, e.OID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvariantViolation reports whether err is an InvariantError.
func IsInvariantViolation(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

// invariantf builds an InvariantError with a formatted message.
func invariantf(code InvariantCode, oid OID, format string, args ...any) *InvariantError {
	return &InvariantError{Code: code, Message: fmt.Sprintf(format, args...), OID: oid}
}

// DisallowedTypeError indicates a stored type tag outside the trusted
// registry during deserialization. A hard security-style rejection: the
// record is never partially reconstructed.
type DisallowedTypeError struct {
	// Tag is the offending type tag.
	Tag string
}

// Error implements the error interface.
func (e *DisallowedTypeError) Error() string {
	return fmt.Sprintf("disallowed type tag %q", e.Tag)
}

// IsDisallowedType reports whether err is a DisallowedTypeError.
func IsDisallowedType(err error) bool {
	var de *DisallowedTypeError
	return errors.As(err, &de)
}
