package types

import (
	"encoding/json"
	"testing"

	"github.com/escala-game/escala-backend/internal/engine"
)

func TestEvent_MaterialKeyCarriesBothShapes(t *testing.T) {
	reveal := Event{
		Type:     EvtMaterialWeightRevealed,
		GameCode: "G123456",
		Material: engine.MaterialRed,
		Weight:   4,
	}
	payload, err := json.Marshal(reveal)
	if err != nil {
		t.Fatalf("marshal reveal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		t.Fatalf("unmarshal reveal: %v", err)
	}
	if m["material"] != "red" {
		t.Fatalf("reveal material key: got %v, want \"red\"", m["material"])
	}
	if m["weight"] != float64(4) {
		t.Fatalf("reveal weight: got %v", m["weight"])
	}

	placed := Event{
		Type:     EvtMaterialPlaced,
		GameCode: "G123456",
		Material: &engine.Token{Kind: engine.MaterialBlue, ID: "tok-1"},
	}
	payload, err = json.Marshal(placed)
	if err != nil {
		t.Fatalf("marshal placed: %v", err)
	}
	if err := json.Unmarshal(payload, &m); err != nil {
		t.Fatalf("unmarshal placed: %v", err)
	}
	tok, ok := m["material"].(map[string]any)
	if !ok {
		t.Fatalf("placed material key: got %T, want object", m["material"])
	}
	if tok["type"] != "blue" || tok["id"] != "tok-1" {
		t.Fatalf("placed material payload wrong: %v", tok)
	}
}
