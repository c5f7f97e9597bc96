package workflow

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Request bundles the inputs to a single transition attempt.
type Request struct {
	ClaimID  string
	Proposed State
	Actor    Actor
	Remarks  string

	// Annotation carries the typed side-effect fields for the target
	// state; nil for transitions without annotations.
	Annotation Annotation

	// StateData is a free-form side channel recorded on the history
	// entry, never interpreted by the core.
	StateData map[string]interface{}
}

// Result reports a committed transition.
type Result struct {
	PreviousStatus State             `json:"previous_status"`
	NewStatus      State             `json:"new_status"`
	Record         *TransitionRecord `json:"record"`
}

// Mutator is the only component that writes claim state. It turns the
// racy read-check-write sequence into an optimistic operation: the
// final write is conditioned on the status read in step one, and a
// mismatch surfaces as ErrConflict rather than a lost update.
type Mutator struct {
	store     ClaimStore
	validator *Validator
	notifier  Notifier
	logger    zerolog.Logger

	// wg tracks in-flight notification goroutines so tests and shutdown
	// can wait for them.
	wg sync.WaitGroup
}

func NewMutator(store ClaimStore, validator *Validator, logger zerolog.Logger) *Mutator {
	return &Mutator{store: store, validator: validator, logger: logger}
}

// SetNotifier attaches an optional post-commit notifier.
func (m *Mutator) SetNotifier(n Notifier) { m.notifier = n }

// Apply performs one transition as a single logical operation:
//
//  1. load the claim (ErrNotFound when absent)
//  2. validate (current, proposed, role) against the policy
//  3. conditionally write the new status plus annotation fields, only
//     while the stored status still equals the one read in step 1
//  4. append exactly one history record with a store-assigned timestamp
//  5. fire the notifier asynchronously; its failure is logged only
//
// A failed call mutates nothing and appends nothing. A conflict is
// returned to the caller, never retried with stale assumptions.
func (m *Mutator) Apply(ctx context.Context, req Request) (*Result, error) {
	snap, err := m.store.Get(ctx, req.ClaimID)
	if err != nil {
		return nil, err
	}

	if err := m.validator.Validate(snap.Status, req.Proposed, req.Actor.Role); err != nil {
		return nil, err
	}
	if req.Annotation != nil && req.Annotation.TargetState() != req.Proposed {
		return nil, &AnnotationMismatchError{Proposed: req.Proposed, Target: req.Annotation.TargetState()}
	}

	patch := Patch{
		NewState:   req.Proposed,
		UpdatedBy:  req.Actor.ID,
		Annotation: req.Annotation,
	}
	if err := m.store.ConditionalUpdate(ctx, req.ClaimID, snap.Status, patch); err != nil {
		return nil, err
	}

	rec := &TransitionRecord{
		ClaimID:       req.ClaimID,
		HospitalID:    snap.HospitalID,
		PreviousState: snap.Status,
		NewState:      req.Proposed,
		ActorID:       req.Actor.ID,
		ActorRole:     req.Actor.Role,
		Remarks:       req.Remarks,
		StateData:     req.StateData,
	}
	if err := m.store.AppendHistory(ctx, rec); err != nil {
		// The status write already committed. Surface the gap loudly
		// instead of pretending the transition did not happen.
		return nil, &PartialFailureError{Record: rec, Err: err}
	}

	m.notify(ctx, rec)

	return &Result{
		PreviousStatus: snap.Status,
		NewStatus:      req.Proposed,
		Record:         rec,
	}, nil
}

func (m *Mutator) notify(ctx context.Context, rec *TransitionRecord) {
	if m.notifier == nil {
		return
	}
	// Detach from the request's cancellation: the transition is already
	// committed, and notification failure never reaches the caller.
	nctx := context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.notifier.TransitionApplied(nctx, rec); err != nil {
			m.logger.Error().Err(err).
				Str("claim_id", rec.ClaimID).
				Str("new_state", string(rec.NewState)).
				Msg("transition notification failed")
		}
	}()
}

// Wait blocks until all in-flight notifications have finished.
func (m *Mutator) Wait() { m.wg.Wait() }
