package scheduler

import (
	"fmt"
	"time"
)

// Job is a unit of work filed in the timetable under its start time. The
// handler names the actor whose chain consumes whatever the job produces.
type Job interface {
	Handler() string
	StartTime() ScheduleTime
	// Schedule files the job (and anything it expands into) with the
	// scheduler.
	Schedule(s *Scheduler)
	// Process runs the job when its time cell fires.
	Process(s *Scheduler)
}

// EventJob fires once per matching minute and pushes its value into the
// handler's chain.
type EventJob struct {
	handler string
	value   any
	start   ScheduleTime
}

// NewEventJob creates a job firing at the given time template.
func NewEventJob(handler string, value any, start ScheduleTime) *EventJob {
	return &EventJob{handler: handler, value: value, start: start}
}

func (j *EventJob) Handler() string         { return j.handler }
func (j *EventJob) StartTime() ScheduleTime { return j.start }
func (j *EventJob) Value() any              { return j.value }

func (j *EventJob) Schedule(s *Scheduler) {
	s.AddJob(j)
}

func (j *EventJob) Process(s *Scheduler) {
	s.fire(j.handler, j.value)
}

func (j *EventJob) String() string {
	return fmt.Sprintf("trigger event %q for schedule[%s] at %s", j.value, j.handler, j.start)
}

// IntervalSpec describes a repeated event: value fired every period
// between start and stop, all three given as time templates.
type IntervalSpec struct {
	Start  string
	Stop   string
	Period string
	Value  any
}

// IntervalEventJob expands an IntervalSpec into EventJobs covering one
// start..stop window, then refiles itself at the stop time to expand the
// next window.
type IntervalEventJob struct {
	handler string
	spec    IntervalSpec
	start   ScheduleTime
}

// NewIntervalEventJob creates the expanding job for an interval spec.
func NewIntervalEventJob(handler string, spec IntervalSpec) *IntervalEventJob {
	return &IntervalEventJob{handler: handler, spec: spec}
}

func (j *IntervalEventJob) Handler() string         { return j.handler }
func (j *IntervalEventJob) StartTime() ScheduleTime { return j.start }

func (j *IntervalEventJob) Schedule(s *Scheduler) {
	now := time.Now()
	startTemplate := ParseScheduleTime(j.spec.Start)
	stopTemplate := ParseScheduleTime(j.spec.Stop)
	period := ParseScheduleTime(j.spec.Period).Delta()
	if period <= 0 {
		return
	}

	// When the stop time has already passed, expand the next window
	// instead of the current one.
	shift := 0
	if !stopTemplate.After(now) {
		shift = 1
	}
	startTime := startTemplate.DateTime(shift, now)

	// A stop template earlier than the start resolves into the next unit
	// (an overnight window like 23:00..01:00).
	stopShift := 0
	if stopTemplate.Before(startTime) {
		stopShift = 1
	}
	stopTime := stopTemplate.DateTime(stopShift, startTime)

	for !startTime.After(stopTime) {
		NewEventJob(j.handler, j.spec.Value, FromTime(startTime)).Schedule(s)
		startTime = startTime.Add(period)
	}

	// Refile at the stop time to expand the following window.
	j.start = FromTime(stopTime)
	s.AddJob(j)
}

func (j *IntervalEventJob) Process(s *Scheduler) {
	s.requestClean()
	s.requestReschedule(j)
}

func (j *IntervalEventJob) String() string {
	return fmt.Sprintf("reschedule interval for schedule[%s]: %v", j.handler, j.spec)
}
