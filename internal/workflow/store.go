package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Actor identifies who performs a transition. Identity and role arrive
// already resolved from the HTTP layer; the core never authenticates.
type Actor struct {
	ID   string
	Role Role
}

// Snapshot is the store's view of a claim at read time: exactly the
// fields the workflow core interprets. All other business data is
// opaque payload the core never touches.
type Snapshot struct {
	ClaimID    string
	HospitalID string
	Status     State
	UpdatedAt  time.Time
	UpdatedBy  string
}

// Patch is the write half of a transition: the new status, the actor
// recorded as updater, and the optional typed side-effect fields that
// must land atomically with the status change.
type Patch struct {
	NewState   State
	UpdatedBy  string
	Annotation Annotation
}

// TransitionRecord is one immutable entry in a claim's status history.
// Seq and ChangedAt are store-assigned: records for a claim are totally
// ordered by the store, never by client wall-clock.
type TransitionRecord struct {
	ID            uuid.UUID              `json:"id"`
	Seq           int64                  `json:"seq"`
	ClaimID       string                 `json:"claim_id"`
	HospitalID    string                 `json:"hospital_id"`
	PreviousState State                  `json:"previous_state"`
	NewState      State                  `json:"new_state"`
	ActorID       string                 `json:"changed_by"`
	ActorRole     Role                   `json:"changed_by_role"`
	Remarks       string                 `json:"remarks"`
	StateData     map[string]interface{} `json:"state_data,omitempty"`
	ChangedAt     time.Time              `json:"changed_at"`
}

// ClaimStore is the contract the workflow core requires from the
// document store. Implementations must honor compare-and-set on
// ConditionalUpdate: the write commits only while the stored status
// still equals expected, otherwise ErrConflict.
//
// A store that cannot bind the status write and the history append into
// one atomic unit must surface an append failure after a committed
// status write so the mutator can report it as a partial failure
// instead of silently dropping history.
type ClaimStore interface {
	// Get returns the claim's current snapshot, or ErrNotFound.
	Get(ctx context.Context, claimID string) (*Snapshot, error)

	// ConditionalUpdate applies the patch iff the stored status equals
	// expected. Returns ErrConflict on a status mismatch, ErrNotFound
	// when the claim is absent.
	ConditionalUpdate(ctx context.Context, claimID string, expected State, patch Patch) error

	// AppendHistory persists the record, assigning Seq and ChangedAt.
	AppendHistory(ctx context.Context, rec *TransitionRecord) error

	// History returns all records for the claim in store order, oldest
	// first. An existing claim with no transitions yields an empty slice.
	History(ctx context.Context, claimID string) ([]*TransitionRecord, error)
}

// Notifier is told about committed transitions. It is invoked
// asynchronously after the fact; an error is logged by the mutator and
// never rolls back or fails the transition.
type Notifier interface {
	TransitionApplied(ctx context.Context, rec *TransitionRecord) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, rec *TransitionRecord) error

func (f NotifierFunc) TransitionApplied(ctx context.Context, rec *TransitionRecord) error {
	return f(ctx, rec)
}
