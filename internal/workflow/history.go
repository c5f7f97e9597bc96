package workflow

import "context"

// StatusView pairs a claim's current status with the transitions the
// requesting role may perform from it.
type StatusView struct {
	ClaimID           string  `json:"claim_id"`
	Status            State   `json:"status"`
	AllowedNextStates []State `json:"allowed_next_states"`
}

// Reader reconstructs the ordered transition history and the
// allowed-next-transitions view for a claim. It never mutates.
type Reader struct {
	store  ClaimStore
	policy *Policy
}

func NewReader(store ClaimStore, policy *Policy) *Reader {
	return &Reader{store: store, policy: policy}
}

// History returns the claim's transition records oldest first, ordered
// by the store-assigned sequence. ErrNotFound when the claim is absent.
func (r *Reader) History(ctx context.Context, claimID string) ([]*TransitionRecord, error) {
	if _, err := r.store.Get(ctx, claimID); err != nil {
		return nil, err
	}
	return r.store.History(ctx, claimID)
}

// CurrentStatus returns the claim's status and the next states the role
// may reach from it. An unknown role simply gets an empty allowed set;
// role validity is the mutator's concern, not the reader's.
func (r *Reader) CurrentStatus(ctx context.Context, claimID string, role Role) (*StatusView, error) {
	snap, err := r.store.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}
	allowed := r.policy.AllowedNextStates(role, snap.Status)
	if allowed == nil {
		allowed = []State{}
	}
	return &StatusView{
		ClaimID:           snap.ClaimID,
		Status:            snap.Status,
		AllowedNextStates: allowed,
	}, nil
}
