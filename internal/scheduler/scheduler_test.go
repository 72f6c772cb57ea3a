package scheduler

import (
	"sync"
	"testing"
	"time"
)

type fireLog struct {
	mu    sync.Mutex
	fired []any
}

func (f *fireLog) fire(handler string, value any) {
	f.mu.Lock()
	f.fired = append(f.fired, value)
	f.mu.Unlock()
}

func (f *fireLog) values() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.fired...)
}

func TestProcessFiresMatchingCells(t *testing.T) {
	log := &fireLog{}
	s := New(nil, log.fire)

	NewEventJob("1", "on", ParseScheduleTime("01:00")).Schedule(s)
	NewEventJob("1", "noon", ParseScheduleTime("12:00")).Schedule(s)

	s.process("2026:08:30:01:00", 0)

	if got := log.values(); len(got) != 1 || got[0] != "on" {
		t.Fatalf("fired %#v", got)
	}
}

func TestProcessMatchesBySuffix(t *testing.T) {
	log := &fireLog{}
	s := New(nil, log.fire)

	// Fires at minute 30 of every hour.
	NewEventJob("1", "tick", ParseScheduleTime("30")).Schedule(s)

	s.process("2026:08:30:09:30", 0)
	s.process("2026:08:30:10:30", 0)
	s.process("2026:08:30:10:31", 0)

	if got := log.values(); len(got) != 2 {
		t.Fatalf("fired %#v", got)
	}
}

func TestProcessDelaysSecondOffsets(t *testing.T) {
	log := &fireLog{}
	s := New(nil, log.fire)

	NewEventJob("1", "late", ParseScheduleTime("30.1")).Schedule(s)

	s.process("2026:08:30:09:30", 0)
	if got := log.values(); len(got) != 0 {
		t.Fatalf("job fired before its second offset: %#v", got)
	}

	deadline := time.Now().Add(3 * time.Second)
	for len(log.values()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("job never fired")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestIntervalExpandsIntoEventJobs(t *testing.T) {
	s := New(nil, nil)

	// A window well in the future so no shift applies.
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	stop := start.Add(30 * time.Minute)
	spec := IntervalSpec{
		Start:  FromTime(start).String(),
		Stop:   FromTime(stop).String(),
		Period: "00:10",
		Value:  "pulse",
	}
	NewIntervalEventJob("1", spec).Schedule(s)

	events := s.Timetable()
	// 4 events: start, +10, +20, +30.
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %#v", len(events), events)
	}
	for _, value := range events {
		if value != "pulse" {
			t.Fatalf("unexpected value: %#v", value)
		}
	}

	// The interval job itself sits at the stop time for rescheduling.
	s.mu.Lock()
	jobs := s.timetable[FromTime(stop).CellKey()]
	s.mu.Unlock()
	interval := 0
	for _, job := range jobs {
		if _, ok := job.(*IntervalEventJob); ok {
			interval++
		}
	}
	if interval != 1 {
		t.Fatalf("expected the interval job filed at stop time, found %d", interval)
	}
}

func TestClearDropsHandlerJobs(t *testing.T) {
	s := New(nil, nil)
	NewEventJob("1", "a", ParseScheduleTime("01:00")).Schedule(s)
	NewEventJob("2", "b", ParseScheduleTime("01:00")).Schedule(s)

	s.Clear("1")

	events := s.Timetable()
	if len(events) != 1 {
		t.Fatalf("expected one remaining event, got %#v", events)
	}
	for _, value := range events {
		if value != "b" {
			t.Fatalf("wrong job survived: %#v", value)
		}
	}

	s.Clear("")
	if events := s.Timetable(); len(events) != 0 {
		t.Fatalf("timetable should be empty, got %#v", events)
	}
}

func TestIntervalRescheduleOnProcess(t *testing.T) {
	s := New(nil, nil)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	spec := IntervalSpec{
		Start:  FromTime(start).String(),
		Stop:   FromTime(start.Add(10 * time.Minute)).String(),
		Period: "00:10",
		Value:  "pulse",
	}
	job := NewIntervalEventJob("1", spec)
	job.Schedule(s)

	before := len(s.Timetable())
	job.Process(s)
	// The pending reschedule expands the window again on the next tick.
	s.process("0000:00:00:00:00", 0)
	after := len(s.Timetable())
	if after < before {
		t.Fatalf("reschedule lost events: before=%d after=%d", before, after)
	}
}
