package store

import (
	"context"
	"sync"

	"github.com/hausnetz/snmp_bridge/models"
)

// MemStore is an in-memory Store used by tests and by local dry runs. It
// records the full publish history per id so assertions can check exactly
// what was written, in order.
type MemStore struct {
	mu      sync.Mutex
	states  map[string]models.StateUpdate
	history map[string][]models.StateUpdate
	objects map[string]ObjectMeta
	subs    []CommandFunc
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		states:  make(map[string]models.StateUpdate),
		history: make(map[string][]models.StateUpdate),
		objects: make(map[string]ObjectMeta),
	}
}

// SetState records the update as the current state and appends it to the id's
// history.
func (s *MemStore) SetState(_ context.Context, id string, st models.StateUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[id] = st
	s.history[id] = append(s.history[id], st)
	return nil
}

// GetState returns the current state for id; a missing id yields a zero
// update.
func (s *MemStore) GetState(_ context.Context, id string) (models.StateUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[id], nil
}

// EnsureObject records the object metadata.
func (s *MemStore) EnsureObject(_ context.Context, id string, meta ObjectMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[id] = meta
	return nil
}

// Subscribe registers fn as a command consumer.
func (s *MemStore) Subscribe(_ context.Context, fn CommandFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
	return nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }

// InjectCommand delivers a command synchronously to every subscriber. Test
// helper.
func (s *MemStore) InjectCommand(id string, st models.StateUpdate) {
	s.mu.Lock()
	subs := make([]CommandFunc, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(id, st)
	}
}

// History returns every update published for id, in order.
func (s *MemStore) History(id string) []models.StateUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.StateUpdate, len(s.history[id]))
	copy(out, s.history[id])
	return out
}

// Object returns the recorded metadata for id and whether it exists.
func (s *MemStore) Object(id string) (ObjectMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.objects[id]
	return m, ok
}
