package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"terrainview.dev/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	p := filepath.Join("..", "..", "schemas", "update.schema.json")
	schema, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", p, err)
	}

	samples := []protocol.Update{
		protocol.NewPlayerCreated(protocol.Player{ID: "player_1", X: 10, Z: 20}),
		protocol.NewPlayerMoved("player_1", -4, 8.5),
		protocol.NewPlayerRemoved("player_1"),
		protocol.NewAllCleared(),
		protocol.NewInitialState([]protocol.Player{{ID: "player_1", X: 1, Z: 2}}),
		protocol.NewInitialState(nil),
	}
	for _, u := range samples {
		b, err := json.Marshal(u)
		if err != nil {
			t.Fatalf("marshal %s: %v", u.Kind(), err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatal(err)
		}
		if err := schema.Validate(v); err != nil {
			t.Fatalf("validate %s: %v", u.Kind(), err)
		}
	}

	var bad any
	_ = json.Unmarshal([]byte(`{"type":"player_moved","id":"player_1"}`), &bad)
	if err := schema.Validate(bad); err == nil {
		t.Fatalf("player_moved without coordinates validated")
	}
}
