// Package registry owns the authoritative player state. One Store
// instance lives for the process lifetime; request handlers mutate it
// and every mutation is published to the bus before the write lock is
// released, so publish order always matches mutation order and a
// Watch can never observe a mutation without also seeing (exactly
// once) its update.
package registry

import (
	"fmt"
	"log"
	"sync"

	"terrainview.dev/internal/bus"
	"terrainview.dev/internal/protocol"
)

type Store struct {
	mu      sync.RWMutex
	players []protocol.Player

	// nextID only grows, so ids are never reused even after Clear.
	nextID uint64

	bus *bus.Bus
	log *log.Logger
}

func NewStore(b *bus.Bus, logger *log.Logger) *Store {
	return &Store{bus: b, log: logger}
}

// Create appends a new player with a fresh id and returns it.
func (s *Store) Create(x, z float64) protocol.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p := protocol.Player{ID: fmt.Sprintf("player_%d", s.nextID), X: x, Z: z}
	s.players = append(s.players, p)
	s.log.Printf("created %s at (%g, %g)", p.ID, x, z)
	s.bus.Publish(protocol.NewPlayerCreated(p))
	return p
}

// Move updates a player's coordinates in place. The bool result is
// false when no player has the given id; the registry is unchanged
// and nothing is published.
func (s *Store) Move(id string, x, z float64) (protocol.Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.players {
		if s.players[i].ID == id {
			s.players[i].X = x
			s.players[i].Z = z
			s.bus.Publish(protocol.NewPlayerMoved(id, x, z))
			return s.players[i], true
		}
	}
	return protocol.Player{}, false
}

// Clear removes every player. Safe to call when already empty.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players = nil
	s.log.Printf("cleared all players")
	s.bus.Publish(protocol.NewAllCleared())
}

// List returns a point-in-time copy of the player list.
func (s *Store) List() []protocol.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Len reports the current player count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}

// Watch atomically takes a snapshot and attaches a bus subscription
// positioned exactly after it: the subscription yields every update
// published after the snapshot, with no gap and no duplicate.
// Mutations publish while holding the write lock, so nothing can be
// published between the copy and the subscribe here.
func (s *Store) Watch() ([]protocol.Player, *bus.Subscription) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked(), s.bus.Subscribe()
}

func (s *Store) copyLocked() []protocol.Player {
	out := make([]protocol.Player, len(s.players))
	copy(out, s.players)
	return out
}
