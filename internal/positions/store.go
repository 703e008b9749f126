package positions

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"CDPShield/internal/model"
)

var (
	ErrNotFound    = errors.New("position not found")
	ErrDuplicateID = errors.New("duplicate position id")
	ErrEmptyID     = errors.New("position id is empty")
)

// Listener receives the full position list after every mutation.
type Listener func([]model.CDPPosition)

type subscription struct {
	id int
	fn Listener
}

// Store holds the tracked CDP positions with concurrency safety.
// Listeners run on the mutating goroutine after the lock is released.
type Store struct {
	mu        sync.Mutex
	positions []model.CDPPosition
	subs      []subscription
	nextSub   int
	filePath  string
	now       func() time.Time
	log       zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for LastUpdated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store, loading state from filePath when it is set.
// An empty filePath keeps the store in memory only.
func NewStore(filePath string, log zerolog.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		filePath: filePath,
		now:      time.Now,
		log:      log.With().Str("component", "positions").Logger(),
	}
	for _, o := range opts {
		o(s)
	}
	if filePath != "" {
		state, err := LoadState(filePath)
		if err != nil {
			return nil, err
		}
		s.positions = state.Positions
		s.log.Info().Int("positions", len(s.positions)).Str("file", filePath).Msg("position state loaded")
	}
	return s, nil
}

// List returns a copy of the current positions.
func (s *Store) List() []model.CDPPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Get returns the position with the given id.
func (s *Store) Get(id string) (model.CDPPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return model.CDPPosition{}, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}
	return s.positions[i], nil
}

// Set replaces the whole position list.
func (s *Store) Set(positions []model.CDPPosition) error {
	seen := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		if p.ID == "" {
			return ErrEmptyID
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("set %q: %w", p.ID, ErrDuplicateID)
		}
		seen[p.ID] = struct{}{}
	}

	s.mu.Lock()
	s.positions = append([]model.CDPPosition(nil), positions...)
	list, subs := s.commit()
	s.mu.Unlock()

	notify(subs, list)
	return nil
}

// Add appends a new position.
func (s *Store) Add(p model.CDPPosition) error {
	if p.ID == "" {
		return ErrEmptyID
	}
	s.mu.Lock()
	if s.indexOf(p.ID) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("add %q: %w", p.ID, ErrDuplicateID)
	}
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.LastUpdated = now
	s.positions = append(s.positions, p)
	list, subs := s.commit()
	s.mu.Unlock()

	notify(subs, list)
	return nil
}

// Update applies fn to the position with the given id. The id itself cannot be changed.
func (s *Store) Update(id string, fn func(*model.CDPPosition)) (model.CDPPosition, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return model.CDPPosition{}, fmt.Errorf("update %q: %w", id, ErrNotFound)
	}
	p := s.positions[i]
	fn(&p)
	p.ID = id
	p.LastUpdated = s.now()

	// copy-on-write so lists already handed out stay unchanged
	next := s.snapshot()
	next[i] = p
	s.positions = next
	list, subs := s.commit()
	s.mu.Unlock()

	notify(subs, list)
	return p, nil
}

// Remove deletes the position with the given id.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("remove %q: %w", id, ErrNotFound)
	}
	next := make([]model.CDPPosition, 0, len(s.positions)-1)
	next = append(next, s.positions[:i]...)
	next = append(next, s.positions[i+1:]...)
	s.positions = next
	list, subs := s.commit()
	s.mu.Unlock()

	notify(subs, list)
	return nil
}

// Subscribe registers fn for change notifications and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// commit persists the current list and returns what listeners need.
// Must be called with s.mu held.
func (s *Store) commit() ([]model.CDPPosition, []Listener) {
	if s.filePath != "" {
		state := &State{Positions: s.positions, UpdatedAt: s.now()}
		if err := SaveState(s.filePath, state); err != nil {
			s.log.Error().Err(err).Str("file", s.filePath).Msg("failed to save position state")
		}
	}
	subs := make([]Listener, len(s.subs))
	for i, sub := range s.subs {
		subs[i] = sub.fn
	}
	return s.snapshot(), subs
}

func (s *Store) snapshot() []model.CDPPosition {
	return append([]model.CDPPosition(nil), s.positions...)
}

func (s *Store) indexOf(id string) int {
	for i := range s.positions {
		if s.positions[i].ID == id {
			return i
		}
	}
	return -1
}

func notify(subs []Listener, list []model.CDPPosition) {
	for _, fn := range subs {
		fn(list)
	}
}
