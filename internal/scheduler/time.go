package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScheduleTime is a time template of the form [[[[YYYY:]MM:]DD:]hh:]mm[.ss].
// Omitted fields hold -1 and act as wildcards: "**:30" fires every hour at
// half past, "05:01:00" every 5th day of the month at 01:00.
type ScheduleTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// timeParser consumes a template right to left, one delimiter at a time.
type timeParser struct {
	s   string
	end int
}

func (p *timeParser) next(delim byte) int {
	if p.end < 0 {
		return -1
	}
	pos := strings.LastIndexByte(p.s[:p.end], delim)
	field := p.s[pos+1 : p.end]
	p.end = pos
	value, err := strconv.Atoi(field)
	if err != nil {
		return -1
	}
	return value
}

// ParseScheduleTime parses a time template. Fields that are absent or not
// numeric become wildcards.
func ParseScheduleTime(template string) ScheduleTime {
	if !strings.Contains(template, ".") {
		template += ".0"
	}
	p := &timeParser{s: template, end: len(template)}
	st := ScheduleTime{}
	st.Second = p.next('.')
	st.Minute = p.next(':')
	st.Hour = p.next(':')
	st.Day = p.next(':')
	st.Month = p.next(':')
	st.Year = p.next(':')
	return st
}

// FromTime converts a concrete time into a fully specified ScheduleTime.
func FromTime(t time.Time) ScheduleTime {
	return ScheduleTime{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

// Template reports whether any leading field is a wildcard.
func (st ScheduleTime) Template() bool {
	return st.Year == -1
}

func nvl(value, fallback int) int {
	if value > -1 {
		return value
	}
	return fallback
}

func (st ScheduleTime) String() string {
	field := func(v int) string {
		if v > -1 {
			return fmt.Sprintf("%02d", v)
		}
		return "**"
	}
	year := "****"
	if st.Year > -1 {
		year = strconv.Itoa(st.Year)
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s.%02d",
		year, field(st.Month), field(st.Day), field(st.Hour), field(st.Minute), nvl(st.Second, 0))
}

// Compare orders two schedule times field by field. A wildcard on either
// side makes that field compare equal.
func (st ScheduleTime) Compare(other ScheduleTime) int {
	cmp := func(a, b int) int {
		if a == -1 || b == -1 {
			return 0
		}
		switch {
		case a > b:
			return 1
		case a < b:
			return -1
		}
		return 0
	}
	for _, pair := range [][2]int{
		{st.Year, other.Year},
		{st.Month, other.Month},
		{st.Day, other.Day},
		{st.Hour, other.Hour},
		{st.Minute, other.Minute},
		{st.Second, other.Second},
	} {
		if res := cmp(pair[0], pair[1]); res != 0 {
			return res
		}
	}
	return 0
}

// Before reports whether the template resolves earlier than the given time.
func (st ScheduleTime) Before(t time.Time) bool {
	return st.Compare(FromTime(t)) == -1
}

// After reports whether the template resolves later than the given time.
func (st ScheduleTime) After(t time.Time) bool {
	return st.Compare(FromTime(t)) == 1
}

// DateTime materializes the template against the start time, with
// wildcards filled in from start. A non-zero shift advances the most
// significant wildcard unit by that amount, which steps the template to
// its next occurrence.
func (st ScheduleTime) DateTime(shift int, start time.Time) time.Time {
	if shift == 0 {
		return time.Date(
			nvl(st.Year, start.Year()),
			time.Month(nvl(st.Month, int(start.Month()))),
			nvl(st.Day, start.Day()),
			nvl(st.Hour, start.Hour()),
			nvl(st.Minute, start.Minute()),
			nvl(st.Second, 0), 0, start.Location())
	}

	var shiftYear, shiftMonth, shiftDay, shiftHour, shiftMinute int
	if st.Year == -1 {
		switch {
		case st.Month > -1:
			shiftYear = shift
		case st.Day > -1:
			shiftMonth = shift
		case st.Hour > -1:
			shiftDay = shift
		case st.Minute > -1:
			shiftHour = shift
		case st.Second == -1:
			shiftMinute = shift
		}
	}

	shifted := start.Add(time.Duration(shiftHour)*time.Hour + time.Duration(shiftMinute)*time.Minute)
	shifted = shifted.AddDate(0, 0, shiftDay)
	if int(shifted.Month())+shiftMonth > 12 {
		shiftYear++
		shiftMonth -= 12
	}

	return time.Date(
		nvl(st.Year, shifted.Year()+shiftYear),
		time.Month(nvl(st.Month, int(shifted.Month())+shiftMonth)),
		nvl(st.Day, shifted.Day()),
		nvl(st.Hour, shifted.Hour()),
		nvl(st.Minute, shifted.Minute()),
		nvl(st.Second, 0), 0, start.Location())
}

// Delta interprets the template as a duration: days, hours, minutes, and
// seconds, with wildcards counting as zero. Used for interval periods.
func (st ScheduleTime) Delta() time.Duration {
	return time.Duration(nvl(st.Day, 0))*24*time.Hour +
		time.Duration(nvl(st.Hour, 0))*time.Hour +
		time.Duration(nvl(st.Minute, 0))*time.Minute +
		time.Duration(nvl(st.Second, 0))*time.Second
}

// CellKey renders the timetable key the template files under: the defined
// fields from minute upward, colon separated. Wildcard prefixes are
// dropped so the key suffix-matches the current minute.
func (st ScheduleTime) CellKey() string {
	cell := ""
	if st.Minute > -1 {
		cell = fmt.Sprintf("%02d", st.Minute)
	}
	if st.Hour > -1 {
		cell = fmt.Sprintf("%02d:", st.Hour) + cell
	}
	if st.Day > -1 {
		cell = fmt.Sprintf("%02d:", st.Day) + cell
	}
	if st.Month > -1 {
		cell = fmt.Sprintf("%02d:", st.Month) + cell
	}
	if st.Year > -1 {
		cell = strconv.Itoa(st.Year) + ":" + cell
	}
	return cell
}
