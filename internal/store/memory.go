package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/easy-homey/internal/entity"
)

var (
	// ErrNotFound is returned when no state has been recorded for an entity.
	ErrNotFound = errors.New("no state recorded for entity")
)

// StateHistory holds a time-ordered list of rendered states for one entity.
type StateHistory struct {
	States []entity.State
}

// MemoryStore is a concurrency-safe in-memory history of entity states.
type MemoryStore struct {
	mu sync.RWMutex

	// key: entity unique id, value: history
	data map[string]*StateHistory

	// retention configuration
	maxHistory int           // max number of states per entity
	maxAge     time.Duration // optional max age for states

	clock clockwork.Clock
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*StateHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		clock:      clockwork.NewRealClock(),
	}
}

// WithClock sets the clock used for age-based retention.
func (s *MemoryStore) WithClock(c clockwork.Clock) *MemoryStore {
	s.clock = c
	return s
}

// SaveState appends a state for its entity and enforces retention.
// States out of time order are inserted in place.
func (s *MemoryStore) SaveState(st entity.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[st.UniqueID]
	if !ok {
		history = &StateHistory{}
		s.data[st.UniqueID] = history
	}

	i := len(history.States)
	for i > 0 && history.States[i-1].UpdatedAt.After(st.UpdatedAt) {
		i--
	}
	history.States = append(history.States, entity.State{})
	copy(history.States[i+1:], history.States[i:])
	history.States[i] = st

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.States) > s.maxHistory {
		over := len(history.States) - s.maxHistory
		history.States = history.States[over:]
	}

	// Enforce retention by age. The newest state is always kept.
	if s.maxAge > 0 {
		cutoff := s.clock.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.States)-1; i++ {
			if !history.States[i].UpdatedAt.Before(cutoff) {
				break
			}
		}
		history.States = history.States[i:]
	}
}

// GetLatest returns the most recent state of an entity.
func (s *MemoryStore) GetLatest(uniqueID string) (entity.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[uniqueID]
	if !ok || len(history.States) == 0 {
		return entity.State{}, ErrNotFound
	}
	return history.States[len(history.States)-1], nil
}

// GetRange returns all states of an entity between from and to (inclusive).
func (s *MemoryStore) GetRange(uniqueID string, from, to time.Time) ([]entity.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[uniqueID]
	if !ok || len(history.States) == 0 {
		return nil, ErrNotFound
	}

	var result []entity.State
	for _, st := range history.States {
		if !st.UpdatedAt.Before(from) && !st.UpdatedAt.After(to) {
			result = append(result, st)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}

// Forget drops the history of every entity not in keep.
func (s *MemoryStore) Forget(keep map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.data {
		if !keep[id] {
			delete(s.data, id)
		}
	}
}
