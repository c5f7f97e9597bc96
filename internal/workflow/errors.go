package workflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for store-level outcomes. Handlers map these onto
// transport codes; only ErrStoreUnavailable is a retry candidate.
var (
	// ErrNotFound means the claim does not exist in the caller's scope.
	ErrNotFound = errors.New("claim not found")

	// ErrConflict means the claim's status changed between read and
	// write; the caller should re-read and decide whether to resubmit.
	ErrConflict = errors.New("claim status changed concurrently")

	// ErrStoreUnavailable is an infrastructure failure, not attributable
	// to the caller's request.
	ErrStoreUnavailable = errors.New("claim store unavailable")
)

// UnknownRoleError reports a role outside the policy's enumeration.
type UnknownRoleError struct {
	Role Role
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown role %q", e.Role)
}

// UnknownStateError reports a state outside the policy's enumeration.
type UnknownStateError struct {
	State State
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("unknown state %q", e.State)
}

// IllegalTransitionError reports a transition the policy does not allow
// for the role. Allowed carries the actually-permitted next states so
// callers can act without guessing.
type IllegalTransitionError struct {
	From    State
	To      State
	Role    Role
	Allowed []State
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("role %q may not move claim from %q to %q (allowed: %v)", e.Role, e.From, e.To, e.Allowed)
}

// AnnotationMismatchError reports a typed side-effect payload whose
// target state differs from the proposed state, e.g. approval fields
// riding a denial transition.
type AnnotationMismatchError struct {
	Proposed State
	Target   State
}

func (e *AnnotationMismatchError) Error() string {
	return fmt.Sprintf("annotation targets state %q but transition proposes %q", e.Target, e.Proposed)
}

// PartialFailureError reports that the status write committed but the
// history append did not. The claim is in its new state with a missing
// trailing record; callers reconcile by re-reading history.
type PartialFailureError struct {
	Record *TransitionRecord
	Err    error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("status committed but history append failed for claim %q: %v", e.Record.ClaimID, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// IsValidationError reports whether the error is a client-input
// rejection (unknown role/state, illegal transition, annotation
// mismatch) rather than a store outcome.
func IsValidationError(err error) bool {
	var ur *UnknownRoleError
	var us *UnknownStateError
	var it *IllegalTransitionError
	var am *AnnotationMismatchError
	return errors.As(err, &ur) || errors.As(err, &us) || errors.As(err, &it) || errors.As(err, &am)
}
