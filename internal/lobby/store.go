package lobby

import (
	"sync"

	"github.com/dom/chess-lobby-client/internal/domain"
)

// Store holds the in-memory lobby projection: every game session the
// viewer can see, keyed by id, newest creations first. It is mutated
// only by reconciliation calls; action responses are fed back through
// the same paths so optimistic and authoritative state cannot diverge.
type Store struct {
	mu      sync.RWMutex
	games   map[string]domain.Game
	order   []string // ids, newest first
	version uint64
}

// NewStore creates an empty lobby store
func NewStore() *Store {
	return &Store{
		games: make(map[string]domain.Game),
	}
}

// ApplyCreated inserts a new session at the front of the observed
// ordering. Duplicate delivery of the same id merges instead of
// inserting twice.
func (s *Store) ApplyCreated(game domain.Game) {
	if game.ID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.games[game.ID]; exists {
		// Duplicate delivery of an id we already hold. The stored state
		// may be newer than this payload (an update can outrun a late
		// created on reconnect), so keep what we have.
		return
	}

	s.games[game.ID] = game
	s.order = append([]string{game.ID}, s.order...)
	s.version++
}

// ApplyUpdated replaces the stored session with the same id. An update
// for an unknown id is treated as an implicit create, which tolerates a
// missed created event after a reconnect.
func (s *Store) ApplyUpdated(game domain.Game) {
	if game.ID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.games[game.ID]; !exists {
		s.order = append([]string{game.ID}, s.order...)
	}
	s.games[game.ID] = game
	s.version++
}

// ApplyRemoved deletes the session if present; removing an unknown id
// is a no-op.
func (s *Store) ApplyRemoved(gameID string) {
	if gameID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.games[gameID]; !exists {
		return
	}

	delete(s.games, gameID)
	for i, id := range s.order {
		if id == gameID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.version++
}

// Resync replaces the entire store content from a full fetch, which
// also reconciles anything missed while disconnected. The fetched
// ordering is preserved.
func (s *Store) Resync(games []domain.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.games = make(map[string]domain.Game, len(games))
	s.order = s.order[:0]
	for _, g := range games {
		if g.ID == "" {
			continue
		}
		if _, exists := s.games[g.ID]; exists {
			continue
		}
		s.games[g.ID] = g
		s.order = append(s.order, g.ID)
	}
	s.version++
}

// Get returns the session with the given id
func (s *Store) Get(gameID string) (domain.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[gameID]
	return g, ok
}

// Games returns a snapshot of the lobby, newest creations first
func (s *Store) Games() []domain.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Game, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.games[id])
	}
	return result
}

// Len returns the number of sessions in the lobby
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

// Version returns a counter that increases on every effective mutation,
// letting an observer cheaply detect change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
