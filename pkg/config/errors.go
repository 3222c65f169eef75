package config

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a lifecycle failure so callers can react without parsing messages.
type ErrorClass string

const (
	// ErrorClassParse indicates the file bytes are not a well-formed YAML mapping.
	ErrorClassParse ErrorClass = "parse"

	// ErrorClassSchemaVersion indicates the version field is missing, malformed, or unknown.
	ErrorClassSchemaVersion ErrorClass = "schema_version"

	// ErrorClassMigrationValidation indicates a document failed validation at a
	// migration boundary, a migration step failed, or the migrated result does not
	// satisfy the latest schema.
	ErrorClassMigrationValidation ErrorClass = "migration_validation"

	// ErrorClassCommitValidation indicates an in-memory document failed validation
	// when it was about to be persisted.
	ErrorClassCommitValidation ErrorClass = "commit_validation"

	// ErrorClassIO indicates the file could not be read or written.
	ErrorClassIO ErrorClass = "io"
)

// Error is the single error type returned by the loader, the handles and the writer.
type Error struct {
	// Class is the failure classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Path is the absolute file path involved, if any.
	Path string `json:"path,omitempty"`

	// Operation is what the engine was doing (read, write, detect, migrate, commit).
	Operation string `json:"operation,omitempty"`

	// Version is the schema version the document was validated against, or the
	// version found on disk for schema version errors. -1 when not applicable.
	Version int `json:"version"`

	// Step is the index of the migration that produced the failing document,
	// -1 when the document came straight from disk or no migration is involved.
	Step int `json:"step"`

	// Found is the raw version value for schema version errors.
	Found any `json:"found,omitempty"`

	// Violations lists every validation failure.
	Violations Violations `json:"violations,omitempty"`

	// Internal marks a failure caused by a defect in a kind declaration rather
	// than by the document, e.g. a migration chain producing an invalid result.
	Internal bool `json:"internal,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Sentinels for errors.Is; only the class is compared.
var (
	ErrParse               = &Error{Class: ErrorClassParse}
	ErrSchemaVersion       = &Error{Class: ErrorClassSchemaVersion}
	ErrMigrationValidation = &Error{Class: ErrorClassMigrationValidation}
	ErrCommitValidation    = &Error{Class: ErrorClassCommitValidation}
	ErrIO                  = &Error{Class: ErrorClassIO}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if len(e.Violations) > 0 {
		msg += ":\n" + e.Violations.String()
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same class.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// Boundary describes the migration boundary of a migration validation error,
// e.g. "v1->v2" for a document rejected after step 1, or "v1" when it came from disk.
func (e *Error) Boundary() string {
	if e.Step < 0 {
		return fmt.Sprintf("v%d", e.Version)
	}
	return fmt.Sprintf("v%d->v%d", e.Step, e.Step+1)
}

// NewParseError creates a parse error for the file at path.
func NewParseError(path string, err error) *Error {
	return &Error{
		Class:     ErrorClassParse,
		Message:   "document is not a well-formed YAML mapping",
		Path:      path,
		Operation: "parse",
		Version:   -1,
		Step:      -1,
		Err:       err,
	}
}

// NewSchemaVersionError creates a schema version error for the raw version value found.
func NewSchemaVersionError(path string, found any, latest int) *Error {
	msg := fmt.Sprintf("version must be an integer between 0 and %d", latest)
	if found == nil {
		msg = "version field is missing"
	}
	return &Error{
		Class:     ErrorClassSchemaVersion,
		Message:   msg,
		Path:      path,
		Operation: "detect",
		Version:   -1,
		Step:      -1,
		Found:     found,
	}
}

// NewMigrationValidationError creates a migration validation error.
// step is the migration that produced the document (-1 if it came from disk).
func NewMigrationValidationError(path string, version, step int, violations Violations, err error) *Error {
	msg := fmt.Sprintf("document does not satisfy schema v%d", version)
	if step >= 0 && err != nil && len(violations) == 0 {
		msg = fmt.Sprintf("migration v%d->v%d failed", step, step+1)
	} else if step >= 0 {
		msg = fmt.Sprintf("document produced by migration v%d->v%d does not satisfy schema v%d", step, step+1, version)
	}
	return &Error{
		Class:      ErrorClassMigrationValidation,
		Message:    msg,
		Path:       path,
		Operation:  "migrate",
		Version:    version,
		Step:       step,
		Violations: violations,
		Err:        err,
	}
}

// NewCommitValidationError creates a commit validation error.
func NewCommitValidationError(path string, version int, violations Violations) *Error {
	return &Error{
		Class:      ErrorClassCommitValidation,
		Message:    fmt.Sprintf("document does not satisfy schema v%d", version),
		Path:       path,
		Operation:  "commit",
		Version:    version,
		Step:       -1,
		Violations: violations,
	}
}

// NewIOError creates an I/O error for operation on path.
func NewIOError(path, operation string, err error) *Error {
	return &Error{
		Class:     ErrorClassIO,
		Message:   fmt.Sprintf("failed to %s file", operation),
		Path:      path,
		Operation: operation,
		Version:   -1,
		Step:      -1,
		Err:       err,
	}
}

// AsInternal marks the error as a kind declaration defect.
func (e *Error) AsInternal() *Error {
	e.Internal = true
	return e
}

func classOf(err error) ErrorClass {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// IsParse returns true if the error is classified as a parse error.
func IsParse(err error) bool {
	return classOf(err) == ErrorClassParse
}

// IsSchemaVersion returns true if the error is classified as a schema version error.
func IsSchemaVersion(err error) bool {
	return classOf(err) == ErrorClassSchemaVersion
}

// IsMigrationValidation returns true if the error is classified as a migration validation error.
func IsMigrationValidation(err error) bool {
	return classOf(err) == ErrorClassMigrationValidation
}

// IsCommitValidation returns true if the error is classified as a commit validation error.
func IsCommitValidation(err error) bool {
	return classOf(err) == ErrorClassCommitValidation
}

// IsIO returns true if the error is classified as an I/O error.
func IsIO(err error) bool {
	return classOf(err) == ErrorClassIO
}

// IsInternal returns true if the error was caused by a kind declaration defect.
func IsInternal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Internal
	}
	return false
}

// ViolationsOf returns the violations carried by err, if any.
func ViolationsOf(err error) Violations {
	var e *Error
	if errors.As(err, &e) {
		return e.Violations
	}
	return nil
}
