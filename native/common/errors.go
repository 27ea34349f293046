package common

import "errors"

// Class groups failures by how a caller should react to them.
type Class string

const (
	ClassAuthorization Class = "authorization"
	ClassEligibility   Class = "eligibility"
	ClassQuota         Class = "quota"
	ClassState         Class = "state"
	ClassValue         Class = "value"
	ClassInternal      Class = "internal"
)

// Error tags a sentinel with its class. Sentinels are compared by identity so
// errors.Is keeps working through %w wrapping.
type Error struct {
	class Class
	err   error
}

// Mark returns err tagged with class.
func Mark(class Class, err error) *Error {
	return &Error{class: class, err: err}
}

func (e *Error) Error() string { return e.err.Error() }

func (e *Error) Unwrap() error { return e.err }

// Class reports the failure class.
func (e *Error) Class() Class { return e.class }

// Classify returns the class of the first tagged error in err's chain.
// Untagged errors are internal.
func Classify(err error) Class {
	if err == nil {
		return ""
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.class
	}
	return ClassInternal
}
