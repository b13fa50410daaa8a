package protocol

// ApplyUpdate folds one update into a player list, returning the new
// list. Replaying a subscriber's received stream through ApplyUpdate,
// starting from its initial_state, reconstructs the registry contents.
// Moves and removals of unknown ids are no-ops.
func ApplyUpdate(players []Player, u Update) []Player {
	switch m := u.(type) {
	case PlayerCreated:
		return append(players, m.Player)
	case PlayerMoved:
		for i := range players {
			if players[i].ID == m.ID {
				players[i].X = m.X
				players[i].Z = m.Z
				break
			}
		}
		return players
	case PlayerRemoved:
		for i := range players {
			if players[i].ID == m.ID {
				return append(players[:i], players[i+1:]...)
			}
		}
		return players
	case AllCleared:
		return nil
	case InitialState:
		out := make([]Player, len(m.Players))
		copy(out, m.Players)
		return out
	default:
		return players
	}
}
