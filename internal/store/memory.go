package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/truthgraph/veracity/internal/model"
)

// Memory is an in-memory store. It is the authoritative implementation for
// tests and small deployments.
//
// Each record kind has its own map guarded by a mutex; Update* additionally
// serializes per key through a keyed lock so update functions for the same
// record never interleave, while updates of different records proceed in
// parallel.
type Memory struct {
	mu         sync.RWMutex
	claims     map[string]model.Claim
	edges      map[string]model.SupportEdge
	bySource   map[string][]string // claim ID -> outgoing edge IDs
	byTarget   map[string][]string // claim ID -> incoming edge IDs
	challenges map[string]model.Challenge
	reps       map[string]model.UserReputation
	history    map[string][]model.VeracityHistoryEntry

	locks keyedLocks
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		claims:     make(map[string]model.Claim),
		edges:      make(map[string]model.SupportEdge),
		bySource:   make(map[string][]string),
		byTarget:   make(map[string][]string),
		challenges: make(map[string]model.Challenge),
		reps:       make(map[string]model.UserReputation),
		history:    make(map[string][]model.VeracityHistoryEntry),
	}
}

// keyedLocks hands out one mutex per key. Locks are never reclaimed; the
// key space (claims, challenges, users) is small relative to record data.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedLocks) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	if l, ok := k.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	k.locks[key] = l
	return l
}

// GetClaim returns the claim with the given ID
func (m *Memory) GetClaim(id string) (model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.claims[id]
	if !ok {
		return model.Claim{}, fmt.Errorf("claim %s: %w", id, ErrNotFound)
	}
	return c, nil
}

// PutClaim stores or overwrites a claim
func (m *Memory) PutClaim(c model.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[c.ID] = c
	return nil
}

// UpdateClaim mutates a claim inside its per-key update scope
func (m *Memory) UpdateClaim(id string, fn func(*model.Claim) error) error {
	l := m.locks.get("claim/" + id)
	l.Lock()
	defer l.Unlock()

	c, err := m.GetClaim(id)
	if err != nil {
		return err
	}
	if err := fn(&c); err != nil {
		return err
	}
	return m.PutClaim(c)
}

// GetEdge returns the support edge with the given ID
func (m *Memory) GetEdge(id string) (model.SupportEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.edges[id]
	if !ok {
		return model.SupportEdge{}, fmt.Errorf("edge %s: %w", id, ErrNotFound)
	}
	return e, nil
}

// PutEdge stores a support edge and indexes it by source and target
func (m *Memory) PutEdge(e model.SupportEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.edges[e.ID]; !exists {
		m.bySource[e.SourceID] = append(m.bySource[e.SourceID], e.ID)
		m.byTarget[e.TargetID] = append(m.byTarget[e.TargetID], e.ID)
	}
	m.edges[e.ID] = e
	return nil
}

// UpdateEdge mutates an edge inside its per-key update scope. Source and
// target are fixed at creation; only the weight may change.
func (m *Memory) UpdateEdge(id string, fn func(*model.SupportEdge) error) error {
	l := m.locks.get("edge/" + id)
	l.Lock()
	defer l.Unlock()

	e, err := m.GetEdge(id)
	if err != nil {
		return err
	}
	src, tgt := e.SourceID, e.TargetID
	if err := fn(&e); err != nil {
		return err
	}
	e.SourceID, e.TargetID = src, tgt
	m.mu.Lock()
	m.edges[id] = e
	m.mu.Unlock()
	return nil
}

// EdgesFrom lists the outgoing support edges of a claim
func (m *Memory) EdgesFrom(sourceID string) ([]model.SupportEdge, error) {
	return m.edgeList(sourceID, m.bySource)
}

// EdgesTo lists the incoming support edges of a claim
func (m *Memory) EdgesTo(targetID string) ([]model.SupportEdge, error) {
	return m.edgeList(targetID, m.byTarget)
}

func (m *Memory) edgeList(claimID string, index map[string][]string) ([]model.SupportEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := index[claimID]
	out := make([]model.SupportEdge, 0, len(ids))
	for _, id := range ids {
		if e, ok := m.edges[id]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetChallenge returns a deep copy of the challenge with the given ID
func (m *Memory) GetChallenge(id string) (model.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.challenges[id]
	if !ok {
		return model.Challenge{}, fmt.Errorf("challenge %s: %w", id, ErrNotFound)
	}
	return cloneChallenge(ch), nil
}

// PutChallenge stores or overwrites a challenge
func (m *Memory) PutChallenge(ch model.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[ch.ID] = cloneChallenge(ch)
	return nil
}

// UpdateChallenge mutates a challenge inside its per-key update scope. This
// is the atomicity boundary for vote upserts and status transitions.
func (m *Memory) UpdateChallenge(id string, fn func(*model.Challenge) error) error {
	l := m.locks.get("challenge/" + id)
	l.Lock()
	defer l.Unlock()

	ch, err := m.GetChallenge(id)
	if err != nil {
		return err
	}
	if err := fn(&ch); err != nil {
		return err
	}
	return m.PutChallenge(ch)
}

// GetReputation returns the reputation record for a user
func (m *Memory) GetReputation(userID string) (model.UserReputation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reps[userID]
	if !ok {
		return model.UserReputation{}, fmt.Errorf("reputation %s: %w", userID, ErrNotFound)
	}
	return r, nil
}

// PutReputation stores or overwrites a reputation record
func (m *Memory) PutReputation(r model.UserReputation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reps[r.UserID] = r
	return nil
}

// UpdateReputation mutates a reputation record, creating a zero-valued one
// first if the user has none
func (m *Memory) UpdateReputation(userID string, fn func(*model.UserReputation) error) error {
	l := m.locks.get("rep/" + userID)
	l.Lock()
	defer l.Unlock()

	r, err := m.GetReputation(userID)
	if err != nil {
		r = model.UserReputation{UserID: userID}
	}
	if err := fn(&r); err != nil {
		return err
	}
	return m.PutReputation(r)
}

// AppendHistory appends to the claim's append-only audit log
func (m *Memory) AppendHistory(e model.VeracityHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[e.ClaimID] = append(m.history[e.ClaimID], e)
	return nil
}

// History returns a claim's audit log in append order
func (m *Memory) History(claimID string) ([]model.VeracityHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.history[claimID]
	out := make([]model.VeracityHistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Close is a no-op for the in-memory store
func (m *Memory) Close() error { return nil }
