package log

import (
	"errors"
	"testing"

	"terrainview.dev/internal/protocol"
)

func TestEventLogger_roundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewEventLogger(dir)

	updates := []protocol.Update{
		protocol.NewPlayerCreated(protocol.Player{ID: "player_1", X: 10, Z: 20}),
		protocol.NewPlayerMoved("player_1", 5, 6),
		protocol.NewAllCleared(),
	}
	for _, u := range updates {
		if err := l.WriteUpdate(u); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListEventFiles(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files=%v want one journal file", files)
	}

	var got []protocol.Update
	err = ReadFile(files[0], func(e Entry) error {
		u, err := protocol.DecodeUpdate(e.Update)
		if err != nil {
			return err
		}
		if e.Type != u.Kind() {
			t.Fatalf("entry type=%s update kind=%s", e.Type, u.Kind())
		}
		if e.TS.IsZero() {
			t.Fatalf("entry has zero timestamp")
		}
		got = append(got, u)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if len(got) != len(updates) {
		t.Fatalf("read %d entries, wrote %d", len(got), len(updates))
	}
	for i, u := range updates {
		if got[i].Kind() != u.Kind() {
			t.Fatalf("entry %d: kind=%s want=%s", i, got[i].Kind(), u.Kind())
		}
	}
	created := got[0].(protocol.PlayerCreated)
	if created.Player.ID != "player_1" || created.Player.X != 10 {
		t.Fatalf("created=%+v", created)
	}

	// Replaying the journal reconstructs the broadcast state.
	var state []protocol.Player
	for _, u := range got {
		state = protocol.ApplyUpdate(state, u)
	}
	if len(state) != 0 {
		t.Fatalf("state=%+v want empty after all_cleared", state)
	}
}

// Shutdown closes the journal while the bus tap may still be draining
// its backlog; a straggling write must fail cleanly, not crash.
func TestEventLogger_writeAfterClose(t *testing.T) {
	l := NewEventLogger(t.TempDir())
	if err := l.WriteUpdate(protocol.NewAllCleared()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	err := l.WriteUpdate(protocol.NewPlayerMoved("player_1", 1, 2))
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("write after close: err=%v want ErrClosed", err)
	}
	// Closing again is a no-op.
	if err := l.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestListEventFiles_missingDir(t *testing.T) {
	if _, err := ListEventFiles(t.TempDir()); err == nil {
		t.Fatalf("expected error for missing events dir")
	}
}
