package bus

import (
	"encoding/json"
	"testing"
)

func TestRepairJSONQuotesFirmwarePayload(t *testing.T) {
	repaired := RepairJSON("{id:node1,ip:10.0.0.7}")
	var decoded map[string]string
	if err := json.Unmarshal([]byte(repaired), &decoded); err != nil {
		t.Fatalf("repaired payload does not decode: %v (%s)", err, repaired)
	}
	if decoded["id"] != "node1" || decoded["ip"] != "10.0.0.7" {
		t.Fatalf("unexpected decoded payload: %#v", decoded)
	}
}

func TestRepairJSONHandlesArrays(t *testing.T) {
	repaired := RepairJSON("{gpio:[{p:2,t:3,a:dht},{p:4,t:51,a:led}]}")
	var decoded struct {
		GPIO []map[string]string `json:"gpio"`
	}
	if err := json.Unmarshal([]byte(repaired), &decoded); err != nil {
		t.Fatalf("repaired payload does not decode: %v (%s)", err, repaired)
	}
	if len(decoded.GPIO) != 2 {
		t.Fatalf("expected 2 gpio entries, got %d", len(decoded.GPIO))
	}
	if decoded.GPIO[0]["a"] != "dht" || decoded.GPIO[1]["t"] != "51" {
		t.Fatalf("unexpected gpio entries: %#v", decoded.GPIO)
	}
}

func TestRepairJSONLeavesQuotedPayloadAlone(t *testing.T) {
	original := `{"session":"abc","request":"ping"}`
	if repaired := RepairJSON(original); repaired != original {
		t.Fatalf("quoted payload was modified: %s", repaired)
	}
}

func TestCompactStripsQuotesAndSpaces(t *testing.T) {
	compacted := Compact(`{"get": "gpio"}`)
	if compacted != "{get:gpio}" {
		t.Fatalf("unexpected compact payload: %s", compacted)
	}
}

func TestSplitTopic(t *testing.T) {
	segments := SplitTopic("/data/node1/dht")
	if len(segments) != 3 || segments[0] != "data" || segments[2] != "dht" {
		t.Fatalf("unexpected segments: %#v", segments)
	}
}
