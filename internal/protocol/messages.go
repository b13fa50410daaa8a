package protocol

import (
	"encoding/json"
	"fmt"
)

// Player is one tracked entity on the plane. Y is never computed or
// stored by the server; clients derive elevation from the terrain mesh.
type Player struct {
	ID string   `json:"id"`
	X  float64  `json:"x"`
	Z  float64  `json:"z"`
	Y  *float64 `json:"y,omitempty"`
}

// Update is one registry mutation as broadcast to subscribers.
type Update interface {
	Kind() string
}

// PLAYER_CREATED (server -> client)
type PlayerCreated struct {
	Type   string `json:"type"`
	Player Player `json:"player"`
}

// PLAYER_MOVED (server -> client)
type PlayerMoved struct {
	Type string  `json:"type"`
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Z    float64 `json:"z"`
}

// PLAYER_REMOVED (server -> client). Reserved: the registry has no
// per-id removal yet, so the server never emits this today.
type PlayerRemoved struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ALL_CLEARED (server -> client)
type AllCleared struct {
	Type string `json:"type"`
}

// INITIAL_STATE (server -> client): synthesized once per subscriber as
// its first message; never published on the shared bus.
type InitialState struct {
	Type    string   `json:"type"`
	Players []Player `json:"players"`
}

func (m PlayerCreated) Kind() string { return m.Type }
func (m PlayerMoved) Kind() string   { return m.Type }
func (m PlayerRemoved) Kind() string { return m.Type }
func (m AllCleared) Kind() string    { return m.Type }
func (m InitialState) Kind() string  { return m.Type }

func NewPlayerCreated(p Player) PlayerCreated {
	return PlayerCreated{Type: TypePlayerCreated, Player: p}
}

func NewPlayerMoved(id string, x, z float64) PlayerMoved {
	return PlayerMoved{Type: TypePlayerMoved, ID: id, X: x, Z: z}
}

func NewPlayerRemoved(id string) PlayerRemoved {
	return PlayerRemoved{Type: TypePlayerRemoved, ID: id}
}

func NewAllCleared() AllCleared {
	return AllCleared{Type: TypeAllCleared}
}

func NewInitialState(players []Player) InitialState {
	if players == nil {
		players = []Player{}
	}
	return InitialState{Type: TypeInitialState, Players: players}
}

// DecodeUpdate routes a raw JSON message to its concrete update type.
func DecodeUpdate(b []byte) (Update, error) {
	base, err := DecodeBase(b)
	if err != nil {
		return nil, err
	}
	switch base.Type {
	case TypePlayerCreated:
		var m PlayerCreated
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypePlayerMoved:
		var m PlayerMoved
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypePlayerRemoved:
		var m PlayerRemoved
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeAllCleared:
		var m AllCleared
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeInitialState:
		var m InitialState
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown update type %q", base.Type)
	}
}
