// Package scheduler files jobs in a minute-resolution timetable and fires
// them when the current minute suffix-matches their time cell.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"khome/internal/logging"
)

// FireFunc delivers a job's value into the handler's actor chain.
type FireFunc func(handler string, value any)

// Scheduler keys jobs by the rendered defined part of their start time.
// Every minute the current time is rendered the same way and every cell
// that suffix-matches it fires.
type Scheduler struct {
	logger *slog.Logger
	fire   FireFunc

	mu          sync.Mutex
	timetable   map[string][]Job
	pending     []Job
	cleanNeeded bool
}

// New creates a scheduler delivering values through fire.
func New(logger *slog.Logger, fire FireFunc) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	if fire == nil {
		fire = func(string, any) {}
	}
	return &Scheduler{
		logger:    logging.WithComponent(logger, "scheduler"),
		fire:      fire,
		timetable: make(map[string][]Job),
	}
}

// AddJob files a job under its time cell.
func (s *Scheduler) AddJob(job Job) string {
	cell := job.StartTime().CellKey()
	s.mu.Lock()
	s.timetable[cell] = append(s.timetable[cell], job)
	s.mu.Unlock()
	return cell
}

// Clear removes all jobs belonging to the handler, then drops obsolete
// cells. An empty handler wipes the whole timetable.
func (s *Scheduler) Clear(handler string) {
	s.mu.Lock()
	if handler == "" {
		s.timetable = make(map[string][]Job)
		s.mu.Unlock()
		return
	}
	for cell, jobs := range s.timetable {
		kept := jobs[:0]
		for _, job := range jobs {
			if job.Handler() != handler {
				kept = append(kept, job)
			}
		}
		s.timetable[cell] = kept
	}
	s.mu.Unlock()
	s.clean()
}

// clean drops cells that are empty or concrete times already in the past.
func (s *Scheduler) clean() {
	now := time.Now()
	s.mu.Lock()
	for cell, jobs := range s.timetable {
		value := ParseScheduleTime(cell)
		if (!value.Template() && !value.After(now)) || len(jobs) == 0 {
			delete(s.timetable, cell)
		}
	}
	s.cleanNeeded = false
	s.mu.Unlock()
}

func (s *Scheduler) requestClean() {
	s.mu.Lock()
	s.cleanNeeded = true
	s.mu.Unlock()
}

func (s *Scheduler) requestReschedule(job Job) {
	s.mu.Lock()
	s.pending = append(s.pending, job)
	s.mu.Unlock()
}

// Timetable exports scheduled events: rendered start time, handler, and
// value per event job.
func (s *Scheduler) Timetable() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make(map[string]any)
	for _, jobs := range s.timetable {
		for _, job := range jobs {
			if event, ok := job.(*EventJob); ok {
				events[event.StartTime().String()] = event.Value()
			}
		}
	}
	return events
}

// Run fires due jobs once per minute until the context is cancelled. The
// first pass runs immediately to catch the minute Run starts in.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		now := time.Now()
		s.process(renderMinute(now), now.Second())

		next := now.Truncate(time.Minute).Add(time.Minute)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// renderMinute formats a time the way cell keys are rendered, down to the
// minute.
func renderMinute(t time.Time) string {
	return fmt.Sprintf("%d:%02d:%02d:%02d:%02d",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute())
}

// process fires every cell matching the current minute. correctionSec is
// how far past the minute boundary the call happens; jobs carrying a
// second offset are delayed by the remainder.
func (s *Scheduler) process(timeNow string, correctionSec int) {
	s.mu.Lock()
	var due []Job
	for cell, jobs := range s.timetable {
		if cellMatches(cell, timeNow) {
			due = append(due, jobs...)
		}
	}
	cleanNeeded := s.cleanNeeded
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, job := range due {
		if sec := job.StartTime().Second; sec > 0 {
			job := job
			time.AfterFunc(time.Duration(sec-correctionSec)*time.Second, func() {
				job.Process(s)
			})
		} else {
			job.Process(s)
		}
	}

	if cleanNeeded {
		s.clean()
	}
	for _, job := range pending {
		job.Schedule(s)
	}
}

// cellMatches reports whether the cell's defined suffix matches the
// rendered current minute. A fully wildcarded cell matches every minute.
func cellMatches(cell, timeNow string) bool {
	return strings.HasSuffix(timeNow, cell)
}
