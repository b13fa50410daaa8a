package protocol

import "encoding/json"

// Update type tags.
const (
	TypePlayerCreated = "player_created"
	TypePlayerMoved   = "player_moved"
	TypePlayerRemoved = "player_removed"
	TypeAllCleared    = "all_cleared"
	TypeInitialState  = "initial_state"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
