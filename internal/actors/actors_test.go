package actors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"khome/internal/scheduler"
)

func config(t *testing.T, typ string, data map[string]any) Config {
	t.Helper()
	if data == nil {
		data = map[string]any{}
	}
	return Config{Type: typ, Data: data}
}

type recordedSignal struct {
	nid, mal string
	value    any
}

type fakeTargets struct {
	mu      sync.Mutex
	signals []recordedSignal
	topics  []string
	bodies  []any
}

func (f *fakeTargets) sendSignal(nid, mal string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, recordedSignal{nid, mal, value})
	return nil
}

func (f *fakeTargets) publish(topic string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.bodies = append(f.bodies, payload)
}

type fakeReadings struct {
	mu      sync.Mutex
	sensors []string
	values  []string
}

func (f *fakeReadings) AppendReading(_ context.Context, sensor, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sensors = append(f.sensors, sensor)
	f.values = append(f.values, value)
	return nil
}

func TestFactoryRejectsInvalidConfigs(t *testing.T) {
	env := &Env{}
	cases := []Config{
		config(t, "unknown", nil),
		config(t, "resend", nil),                             // no src
		config(t, "average", map[string]any{"src": "n1"}),    // no box
		config(t, "logthingspeak", map[string]any{"src": "n1"}), // no key
	}
	for _, cfg := range cases {
		if actor := New(cfg, "1", env); actor != nil {
			t.Errorf("%s config should be rejected: %#v", cfg.Type, cfg.Data)
		}
	}
}

func TestFactoryBuildsKnownTypes(t *testing.T) {
	env := &Env{}
	cases := []Config{
		config(t, "Resend", map[string]any{"src": "n1", "src_mdl": "sw"}),
		config(t, "average", map[string]any{"src": "n1", "src_mdl": "dht", "box": "avg"}),
		config(t, "logdb", map[string]any{"src": "n1", "src_mdl": "dht"}),
		config(t, "LogBus", map[string]any{"src": "n1", "src_mdl": "dht", "trg": "/data/out"}),
		config(t, "schedule", map[string]any{"jobs": []any{}}),
	}
	for _, cfg := range cases {
		actor := New(cfg, "7", env)
		if actor == nil {
			t.Fatalf("%s should load", cfg.Type)
		}
		if actor.ID() != "7" {
			t.Fatalf("id not applied: %s", actor.ID())
		}
		if !actor.Active() {
			t.Fatalf("%s should default to active", cfg.Type)
		}
	}
}

func TestParseConfigRequiresType(t *testing.T) {
	if _, err := ParseConfig(`{"data":{}}`); err == nil {
		t.Fatal("missing type should fail")
	}
	cfg, err := ParseConfig(`{"type":"resend","active":false,"data":{"src":"n1"}}`)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Active == nil || *cfg.Active {
		t.Fatal("active flag lost")
	}
}

func TestResendForwardsWithMapping(t *testing.T) {
	targets := &fakeTargets{}
	env := &Env{SendSignal: targets.sendSignal}
	actor := New(config(t, "resend", map[string]any{
		"src": "n1", "src_mdl": "button",
		"trg": "n2", "trg_mdl": "relay",
		"map": []any{
			map[string]any{"in": "1", "out": "on", "trg": "n3", "trg_mdl": "siren"},
		},
	}), "1", env)

	actor.ProcessSignal("0")
	actor.ProcessSignal("1")

	if len(targets.signals) != 2 {
		t.Fatalf("signals: %#v", targets.signals)
	}
	if s := targets.signals[0]; s.nid != "n2" || s.mal != "relay" || s.value != "0" {
		t.Fatalf("unmapped signal: %#v", s)
	}
	if s := targets.signals[1]; s.nid != "n3" || s.mal != "siren" || s.value != "on" {
		t.Fatalf("mapped signal: %#v", s)
	}
}

func TestAverageSlidingWindow(t *testing.T) {
	env := &Env{}
	actor := New(config(t, "average", map[string]any{
		"src": "n1", "src_mdl": "dht", "box": "avg", "depth": 2,
	}), "1", env)

	actor.ProcessSignal("10")
	if got := actor.Box().Value(); got != "10.0" {
		t.Fatalf("first value: %#v", got)
	}
	actor.ProcessSignal("20")
	if got := actor.Box().Value(); got != "15.0" {
		t.Fatalf("window of two: %#v", got)
	}
	// depth 2: the first sample falls out of the window
	actor.ProcessSignal("40")
	if got := actor.Box().Value(); got != "30.0" {
		t.Fatalf("window slid: %#v", got)
	}
}

func TestAverageCompositeSignal(t *testing.T) {
	env := &Env{}
	actor := New(config(t, "average", map[string]any{
		"src": "n1", "src_mdl": "dht", "box": "avg",
	}), "1", env)

	actor.ProcessSignal(map[string]any{"t": "20", "h": "60"})
	actor.ProcessSignal(map[string]any{"t": "22", "h": "40"})

	averaged, ok := actor.Box().Value().(map[string]any)
	if !ok {
		t.Fatalf("box holds %#v", actor.Box().Value())
	}
	if averaged["t"] != "21.0" || averaged["h"] != "50.0" {
		t.Fatalf("averaged: %#v", averaged)
	}
}

func TestLogDBHonorsPeriod(t *testing.T) {
	readings := &fakeReadings{}
	env := &Env{Readings: readings}
	actor := New(config(t, "logdb", map[string]any{
		"src": "n1", "src_mdl": "dht", "period": 3,
	}), "1", env)

	for i := 0; i < 7; i++ {
		actor.ProcessSignal(map[string]any{"t": "21", "h": "50"})
	}

	if len(readings.values) != 2 {
		t.Fatalf("expected 2 stored readings, got %d", len(readings.values))
	}
	if readings.sensors[0] != "n1/dht" {
		t.Fatalf("sensor key: %q", readings.sensors[0])
	}
	if readings.values[0] != `{"h":"50","t":"21"}` {
		t.Fatalf("value rendering: %q", readings.values[0])
	}
}

func TestLogBusPublishesMapped(t *testing.T) {
	targets := &fakeTargets{}
	env := &Env{Publish: targets.publish}
	actor := New(config(t, "logbus", map[string]any{
		"src": "n1", "src_mdl": "pir",
		"trg": "/data/presence",
		"map": []any{map[string]any{"in": "1", "out": "motion"}},
	}), "1", env)

	actor.ProcessSignal("1")

	if len(targets.topics) != 1 || targets.topics[0] != "/data/presence" {
		t.Fatalf("topics: %#v", targets.topics)
	}
	if targets.bodies[0] != "motion" {
		t.Fatalf("payload: %#v", targets.bodies[0])
	}
}

func TestLogThingSpeakUploadsForm(t *testing.T) {
	var mu sync.Mutex
	var forms []map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		form := make(map[string]string)
		for key := range r.PostForm {
			form[key] = r.PostForm.Get(key)
		}
		mu.Lock()
		forms = append(forms, form)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := &Env{}
	actor := New(config(t, "logthingspeak", map[string]any{
		"src": "n1", "src_mdl": "dht",
		"key": "secret",
		"url": server.URL,
		"map": []any{
			map[string]any{"in": "t", "out": "field1"},
			map[string]any{"in": "h", "out": "field2"},
		},
	}), "1", env)

	actor.ProcessSignal(map[string]any{"t": "21.5", "h": "48", "x": "ignored"})

	mu.Lock()
	defer mu.Unlock()
	if len(forms) != 1 {
		t.Fatalf("uploads: %#v", forms)
	}
	form := forms[0]
	if form["key"] != "secret" || form["field1"] != "21.5" || form["field2"] != "48" {
		t.Fatalf("form: %#v", form)
	}
	if _, ok := form["x"]; ok {
		t.Fatalf("unmapped alias uploaded: %#v", form)
	}
}

func TestScheduleFilesJobs(t *testing.T) {
	jobs := scheduler.New(nil, nil)
	env := &Env{Jobs: jobs}
	actor := New(config(t, "schedule", map[string]any{
		"jobs": []any{
			map[string]any{"event": "01:00", "value": "wake"},
			map[string]any{"value": "orphan"}, // neither event nor period
		},
	}), "9", env)
	if actor == nil {
		t.Fatal("schedule should load")
	}

	events := jobs.Timetable()
	if len(events) != 1 {
		t.Fatalf("timetable: %#v", events)
	}
	for _, value := range events {
		if value != "wake" {
			t.Fatalf("unexpected value: %#v", value)
		}
	}

	// Editing reschedules from scratch.
	actor.ApplyChanges()
	if events := jobs.Timetable(); len(events) != 1 {
		t.Fatalf("reschedule lost jobs: %#v", events)
	}
}

func TestSignalString(t *testing.T) {
	if got := signalString("on"); got != "on" {
		t.Fatalf("string: %q", got)
	}
	if got := signalString(map[string]any{"b": "2", "a": "1"}); got != `{"a":"1","b":"2"}` {
		t.Fatalf("sorted composite: %q", got)
	}
	if got := signalString([]any{"x"}); got != `{"unknown-value-type":}` {
		t.Fatalf("unknown type: %q", got)
	}
}

func TestAverageHandlesConcurrentSignals(t *testing.T) {
	env := &Env{}
	actor := New(config(t, "average", map[string]any{
		"src": "n1", "src_mdl": "dht", "box": "avg", "depth": 5,
	}), "1", env)

	// Bus dispatch runs one goroutine per message, so signals for a
	// single actor land concurrently.
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				actor.ProcessSignal(map[string]any{"t": "20", "h": "60"})
			}
		}()
	}
	wg.Wait()

	averaged, ok := actor.Box().Value().(map[string]any)
	if !ok {
		t.Fatalf("box holds %#v", actor.Box().Value())
	}
	if averaged["t"] != "20.0" || averaged["h"] != "60.0" {
		t.Fatalf("averaged: %#v", averaged)
	}
}

func TestLogDBCountsUnderConcurrentSignals(t *testing.T) {
	readings := &fakeReadings{}
	env := &Env{Readings: readings}
	actor := New(config(t, "logdb", map[string]any{
		"src": "n1", "src_mdl": "dht", "period": 2,
	}), "1", env)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				actor.ProcessSignal("21")
			}
		}()
	}
	wg.Wait()

	// 400 signals at period 2 store exactly half of them.
	readings.mu.Lock()
	stored := len(readings.values)
	readings.mu.Unlock()
	if stored != 200 {
		t.Fatalf("expected 200 stored readings, got %d", stored)
	}
}

func TestSetActiveToggles(t *testing.T) {
	env := &Env{}
	actor := New(config(t, "resend", map[string]any{
		"src": "n1", "src_mdl": "sw", "trg": "n2", "trg_mdl": "led",
	}), "1", env)

	if !actor.Active() {
		t.Fatal("actors default to active")
	}
	actor.SetActive(false)
	if actor.Active() {
		t.Fatal("actor still active after SetActive(false)")
	}
	actor.SetActive(true)
	if !actor.Active() {
		t.Fatal("actor not reactivated")
	}
}
