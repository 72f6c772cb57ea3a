package manager

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"khome/internal/inventory"
	"khome/internal/scheduler"
)

type published struct {
	topic   string
	payload string
}

// fakeSender records publishes and lets tests answer node sessions the
// way firmware would.
type fakeSender struct {
	mu      sync.Mutex
	records []published
	// answer, when set, is delivered to the node session awaiting the
	// published topic.
	answer func(topic string) (*inventory.Node, map[string]any)
}

func (f *fakeSender) Publish(topic string, message any, _ bool) (string, error) {
	var payload string
	switch value := message.(type) {
	case string:
		payload = value
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", err
		}
		payload = string(encoded)
	}
	f.mu.Lock()
	f.records = append(f.records, published{topic, payload})
	f.mu.Unlock()

	if f.answer != nil {
		if node, response := f.answer(topic); node != nil {
			go func() {
				for !node.Session.Active() {
					time.Sleep(time.Millisecond)
				}
				node.Session.Complete(response)
			}()
		}
	}
	return payload, nil
}

func (f *fakeSender) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.records...)
}

func (f *fakeSender) lastTo(topic string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].topic == topic {
			return f.records[i].payload, true
		}
	}
	return "", false
}

func newManager(sender Sender) *Manager {
	inv := inventory.New(100*time.Millisecond, nil)
	sched := scheduler.New(nil, nil)
	return New(nil, sender, inv, sched, nil)
}

type chainActor struct {
	id  string
	src string
	mdl string

	mu       sync.Mutex
	received []any
}

func (a *chainActor) ID() string                     { return a.id }
func (a *chainActor) Type() string                   { return "chain" }
func (a *chainActor) Active() bool                   { return true }
func (a *chainActor) Box() *inventory.Box            { return nil }
func (a *chainActor) SourceRef() (string, string)    { return a.src, a.mdl }
func (a *chainActor) ConfigSnapshot() map[string]any { return map[string]any{"id": a.id} }

func (a *chainActor) ProcessSignal(value any) {
	a.mu.Lock()
	a.received = append(a.received, value)
	a.mu.Unlock()
}

func TestOnConnectAsksForIntroductions(t *testing.T) {
	sender := &fakeSender{}
	m := newManager(sender)

	m.OnConnect()

	payload, ok := sender.lastTo("/config/~")
	if !ok || payload != "i!" {
		t.Fatalf("roll call not sent: %#v", sender.sent())
	}
}

func TestNodeHelloRegistersNodeAndModules(t *testing.T) {
	sender := &fakeSender{}
	m := newManager(sender)
	sender.answer = func(topic string) (*inventory.Node, map[string]any) {
		if topic != "/config/n1" {
			return nil, nil
		}
		return m.inv.Node("n1"), map[string]any{
			"gpio": []any{
				map[string]any{"p": "2", "t": "3", "a": "dht"},
				map[string]any{"p": "99", "t": "3", "a": "bad-pin"},
			},
		}
	}

	m.OnMessage("/nodes/n1", `{"id":"n1","ip":"10.0.0.7"}`)

	node := m.inv.Node("n1")
	if node == nil {
		t.Fatal("node not registered")
	}
	if node.Module("dht") == nil {
		t.Fatal("module not uploaded")
	}
	if node.Module("bad-pin") != nil {
		t.Fatal("module with bad pin should still upload; the node reported it")
	}
}

func TestModuleDataFiresHandlerChain(t *testing.T) {
	sender := &fakeSender{}
	m := newManager(sender)
	node := m.inv.RegisterNode(map[string]any{"id": "n1"})
	m.inv.RegisterModule(node, inventory.ModuleConfig{Pin: "2", Type: "3", Alias: "dht"})
	actor := &chainActor{id: "1", src: "n1", mdl: "dht"}
	m.inv.RegisterActor(actor)

	m.OnMessage("/data/n1/dht", `{"t":"21","h":"50"}`)

	module := node.Module("dht")
	value, ok := module.Box.Value().(map[string]any)
	if !ok || value["t"] != "21" {
		t.Fatalf("box value: %#v", module.Box.Value())
	}
	actor.mu.Lock()
	defer actor.mu.Unlock()
	if len(actor.received) != 1 {
		t.Fatalf("chain fired %d times", len(actor.received))
	}
}

func TestModuleNackIsDropped(t *testing.T) {
	sender := &fakeSender{}
	m := newManager(sender)
	node := m.inv.RegisterNode(map[string]any{"id": "n1"})
	m.inv.RegisterModule(node, inventory.ModuleConfig{Pin: "2", Type: "3", Alias: "sw"})

	m.OnMessage("/data/n1/sw", `{"nack":"busy"}`)

	if value := node.Module("sw").Box.Value(); value != "" {
		t.Fatalf("nack should not reach the box: %#v", value)
	}
}

func TestResponseCompletesSession(t *testing.T) {
	sender := &fakeSender{}
	m := newManager(sender)
	node := m.inv.RegisterNode(map[string]any{"id": "n1"})

	done := make(chan map[string]any, 1)
	go func() {
		done <- node.Session.Await("{ping:}", "")
	}()
	for !node.Session.Active() {
		time.Sleep(time.Millisecond)
	}

	m.OnMessage("/nodes/n1", `{"ack":"0"}`)

	select {
	case response := <-done:
		if response == nil || response["ack"] != "0" {
			t.Fatalf("response: %#v", response)
		}
	case <-time.After(time.Second):
		t.Fatal("session never completed")
	}
	if !node.Alive() {
		t.Fatal("answering node should be marked alive")
	}
}

func TestNorthStructureRevisionShortCircuit(t *testing.T) {
	sender := &fakeSender{}
	m := newManager(sender)
	m.inv.RegisterNode(map[string]any{"id": "n1"})

	m.OnMessage("/manager", `{"session":"s1","request":"get-structure","params":{"revision":"1"}}`)

	payload, ok := sender.lastTo("/manager/s1")
	if !ok {
		t.Fatalf("no reply: %#v", sender.sent())
	}
	var reply map[string]any
	if err := json.Unmarshal([]byte(payload), &reply); err != nil {
		t.Fatal(err)
	}
	if len(reply) != 1 || reply["revision"] != float64(1) {
		t.Fatalf("expected revision-only reply, got %s", payload)
	}

	// A stale revision gets the full structure.
	m.OnMessage("/manager", `{"session":"s2","request":"get-structure","params":{"revision":"0"}}`)
	payload, _ = sender.lastTo("/manager/s2")
	if !strings.Contains(payload, "nodes") {
		t.Fatalf("expected full structure, got %s", payload)
	}
}

func TestNorthGetDataSelectsKeys(t *testing.T) {
	sender := &fakeSender{}
	m := newManager(sender)
	node := m.inv.RegisterNode(map[string]any{"id": "n1"})
	m.inv.RegisterModule(node, inventory.ModuleConfig{Pin: "2", Type: "3", Alias: "dht"})

	m.OnMessage("/manager", `{"session":"s1","request":"get-data","params":["n1/dht"]}`)

	payload, ok := sender.lastTo("/manager/s1")
	if !ok || !strings.Contains(payload, "modules-data") || !strings.Contains(payload, "n1/dht") {
		t.Fatalf("reply: %q", payload)
	}
}

func TestNorthSignalUnknownModuleNacks(t *testing.T) {
	sender := &fakeSender{}
	m := newManager(sender)

	m.OnMessage("/manager", `{"session":"s1","request":"signal","params":{"node":"nx","module":"sw","value":"1"}}`)

	payload, ok := sender.lastTo("/manager/s1")
	if !ok || !strings.Contains(payload, "nack") {
		t.Fatalf("reply: %q", payload)
	}
}

func TestNorthSignalTimeoutNacks(t *testing.T) {
	sender := &fakeSender{}
	m := newManager(sender)
	node := m.inv.RegisterNode(map[string]any{"id": "n1"})
	m.inv.RegisterModule(node, inventory.ModuleConfig{Pin: "2", Type: "51", Alias: "sw"})

	// No answer arrives: the session times out and the client is told.
	m.OnMessage("/manager", `{"session":"s1","request":"signal","params":{"node":"n1","module":"sw","value":"1"}}`)

	payload, _ := sender.lastTo("/manager/s1")
	if !strings.Contains(payload, "timeout") {
		t.Fatalf("reply: %q", payload)
	}
	if node.Alive() {
		t.Fatal("silent node should be marked dead")
	}
}

func TestNorthAddModuleUploadsAndRegisters(t *testing.T) {
	sender := &fakeSender{}
	m := newManager(sender)
	node := m.inv.RegisterNode(map[string]any{"id": "n1"})
	sender.answer = func(topic string) (*inventory.Node, map[string]any) {
		if topic != "/config/n1" {
			return nil, nil
		}
		return node, map[string]any{"ack": "0"}
	}

	m.OnMessage("/manager",
		`{"session":"s1","request":"add-module","params":{"node":"n1","gpio":[{"p":"2","t":"3","a":"dht"}]}}`)

	payload, _ := sender.lastTo("/manager/s1")
	if !strings.Contains(payload, `"ack":"1"`) {
		t.Fatalf("reply: %q", payload)
	}
	if node.Module("dht") == nil {
		t.Fatal("module not registered after ack")
	}
}

func TestNorthDelModuleRemovesAfterAck(t *testing.T) {
	sender := &fakeSender{}
	m := newManager(sender)
	node := m.inv.RegisterNode(map[string]any{"id": "n1"})
	m.inv.RegisterModule(node, inventory.ModuleConfig{Pin: "2", Type: "3", Alias: "dht"})
	sender.answer = func(topic string) (*inventory.Node, map[string]any) {
		if topic != "/config/n1" {
			return nil, nil
		}
		return node, map[string]any{"ack": "0"}
	}

	m.OnMessage("/manager",
		`{"session":"s1","request":"del-module","params":{"node":"n1","modules":["dht"]}}`)

	payload, _ := sender.lastTo("/manager/s1")
	if !strings.Contains(payload, `"ack":"1"`) {
		t.Fatalf("reply: %q", payload)
	}
	if node.Module("dht") != nil {
		t.Fatal("module still registered after deletion")
	}
}

func TestNorthEditModuleRenames(t *testing.T) {
	sender := &fakeSender{}
	m := newManager(sender)
	node := m.inv.RegisterNode(map[string]any{"id": "n1"})
	m.inv.RegisterModule(node, inventory.ModuleConfig{Pin: "2", Type: "3", Alias: "dht"})
	before := m.inv.Revision()

	m.OnMessage("/manager",
		`{"session":"s1","request":"edit-module","params":{"node":"n1","module":"dht","gpio":{"name":"Bedroom"}}}`)

	payload, _ := sender.lastTo("/manager/s1")
	if !strings.Contains(payload, `"ack":"1"`) {
		t.Fatalf("reply: %q", payload)
	}
	if node.Module("dht").Config.Name != "Bedroom" {
		t.Fatal("name not updated")
	}
	if m.inv.Revision() == before {
		t.Fatal("revision should bump on rename")
	}
}

func TestMalformedTrafficReportsError(t *testing.T) {
	sender := &fakeSender{}
	m := newManager(sender)

	m.OnMessage("/nodes/n1", "{{{not json")

	if _, ok := sender.lastTo("/error"); !ok {
		t.Fatalf("no error report: %#v", sender.sent())
	}
}
