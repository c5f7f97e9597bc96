package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a ClaimStore backed by process memory. It implements
// the same compare-and-set contract as the durable store and backs the
// workflow and domain test suites; it is also usable as a scratch store
// in development tooling.
type InMemoryStore struct {
	mu          sync.Mutex
	claims      map[string]*Snapshot
	history     map[string][]*TransitionRecord
	annotations map[string]Annotation
	seq         int64
	lastStamp   time.Time

	// appendErr, when set, makes the next AppendHistory call fail after
	// the status write has already committed. Used to exercise the
	// partial-failure path.
	appendErr error
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		claims:      make(map[string]*Snapshot),
		history:     make(map[string][]*TransitionRecord),
		annotations: make(map[string]Annotation),
	}
}

// Put seeds or replaces a claim snapshot. Creation is ordinary storage,
// not a transition, so no history record is written.
func (s *InMemoryStore) Put(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *snap
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	s.claims[cp.ClaimID] = &cp
}

// FailNextAppend arms a one-shot AppendHistory failure.
func (s *InMemoryStore) FailNextAppend(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

// LastAnnotation returns the most recent annotation applied to a claim.
func (s *InMemoryStore) LastAnnotation(claimID string) Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.annotations[claimID]
}

func (s *InMemoryStore) Get(_ context.Context, claimID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.claims[claimID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *snap
	return &cp, nil
}

func (s *InMemoryStore) ConditionalUpdate(_ context.Context, claimID string, expected State, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.claims[claimID]
	if !ok {
		return ErrNotFound
	}
	if snap.Status != expected {
		return ErrConflict
	}
	snap.Status = patch.NewState
	snap.UpdatedBy = patch.UpdatedBy
	snap.UpdatedAt = s.stamp()
	if patch.Annotation != nil {
		s.annotations[claimID] = patch.Annotation
	}
	return nil
}

func (s *InMemoryStore) AppendHistory(_ context.Context, rec *TransitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		err := s.appendErr
		s.appendErr = nil
		return err
	}
	s.seq++
	rec.ID = uuid.New()
	rec.Seq = s.seq
	rec.ChangedAt = s.stamp()
	cp := *rec
	s.history[rec.ClaimID] = append(s.history[rec.ClaimID], &cp)
	return nil
}

func (s *InMemoryStore) History(_ context.Context, claimID string) ([]*TransitionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.history[claimID]
	out := make([]*TransitionRecord, len(recs))
	for i, r := range recs {
		cp := *r
		out[i] = &cp
	}
	return out, nil
}

// stamp returns a strictly increasing timestamp, standing in for the
// durable store's server clock. Callers must hold s.mu.
func (s *InMemoryStore) stamp() time.Time {
	now := time.Now().UTC()
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = now
	return now
}
