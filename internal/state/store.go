package state

import (
	"errors"
	"sync"

	"github.com/erazemk/handreceipt/internal/model"
)

// ErrLocked is returned by WithLock when the id already has a command in flight.
var ErrLocked = errors.New("operation already in progress")

// Store owns the current State. It is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	state State
}

// NewStore returns a store seeded with transfers.
func NewStore(transfers []model.Transfer) *Store {
	return &Store{state: New(transfers)}
}

// Dispatch applies a to the current state.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	s.mu.Unlock()
}

// Snapshot returns the current state. Callers must not modify it.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Find returns the current version of a transfer.
func (s *Store) Find(id string) (model.Transfer, bool) {
	return s.Snapshot().Find(id)
}

// FindBySerial returns the most recent transfer for a serial number that
// keep accepts.
func (s *Store) FindBySerial(serial string, keep func(model.Transfer) bool) (model.Transfer, bool) {
	return s.Snapshot().FindBySerial(serial, keep)
}

// WithLock runs fn while id is marked loading. The loading flag doubles as a
// per-id mutex: if it is already set, fn is not run and ErrLocked is
// returned. The flag is cleared on every exit path, including panics.
func (s *Store) WithLock(id string, fn func() error) error {
	s.mu.Lock()
	if s.state.IsLoading(id) {
		s.mu.Unlock()
		return ErrLocked
	}
	s.state = Reduce(s.state, StartLoading{ID: id})
	s.mu.Unlock()

	defer s.Dispatch(StopLoading{ID: id})
	return fn()
}
