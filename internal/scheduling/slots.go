// Package scheduling expands weekly availability into bookable slots.
//
// Everything here is pure: callers load templates, overrides and bookings
// from the store and pass them in, so the rules can be tested without a
// database.
package scheduling

import (
	"fmt"
	"sort"
	"time"
)

const DefaultDuration = 60

type OverrideType string

const (
	OverrideUnavailable OverrideType = "unavailable"
	OverrideCustomHours OverrideType = "custom_hours"
)

// Template is one weekday of a therapist's recurring availability.
type Template struct {
	Weekday     time.Weekday
	Start       Clock
	End         Clock
	Duration    int
	MaxSessions int
}

// Override replaces the template for a single date.
type Override struct {
	Date  Date
	Type  OverrideType
	Start *Clock
	End   *Clock
}

// Booking is an interval already consumed by a non-cancelled session.
type Booking struct {
	Date     Date
	Start    Clock
	Duration int
}

func (b Booking) end() Clock {
	return b.Start.Add(b.Duration)
}

type Slot struct {
	Date     Date  `json:"date"`
	Start    Clock `json:"startTime"`
	End      Clock `json:"endTime"`
	Duration int   `json:"duration"`
}

// StartsAt returns the absolute start of the slot in loc.
func (s Slot) StartsAt(loc *time.Location) time.Time {
	return s.Start.On(s.Date, loc)
}

type Request struct {
	From      Date
	To        Date
	Templates []Template
	Overrides []Override
	Bookings  []Booking
	// Slots starting at or before Now are dropped. Zero disables the check.
	Now      time.Time
	Location *time.Location
}

func (r Request) Validate(maxDays int) error {
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("start and end dates are required")
	}
	if r.To.Before(r.From) {
		return fmt.Errorf("end date %s is before start date %s", r.To, r.From)
	}
	if maxDays > 0 && r.From.DaysUntil(r.To) >= maxDays {
		return fmt.Errorf("date range exceeds %d days", maxDays)
	}
	return nil
}

// Window is the resolved working hours for one date.
type Window struct {
	Start       Clock
	End         Clock
	Duration    int
	MaxSessions int
}

// ResolveDay applies the override rules for a single date. ok is false when
// the day yields no availability.
func ResolveDay(date Date, templates map[time.Weekday]Template, overrides map[Date]Override) (Window, bool) {
	tmpl, hasTemplate := templates[date.Weekday()]

	if ov, found := overrides[date]; found {
		if ov.Type == OverrideUnavailable || ov.Start == nil || ov.End == nil {
			return Window{}, false
		}
		w := Window{Start: *ov.Start, End: *ov.End, Duration: DefaultDuration}
		if hasTemplate {
			w.Duration = tmpl.Duration
			w.MaxSessions = tmpl.MaxSessions
		}
		return w.normalized()
	}

	if !hasTemplate {
		return Window{}, false
	}
	return Window{
		Start:       tmpl.Start,
		End:         tmpl.End,
		Duration:    tmpl.Duration,
		MaxSessions: tmpl.MaxSessions,
	}.normalized()
}

func (w Window) normalized() (Window, bool) {
	if w.Duration <= 0 {
		w.Duration = DefaultDuration
	}
	if w.End > EndOfDay {
		w.End = EndOfDay
	}
	return w, w.Start < w.End
}

// Generate returns the free slots for the request, ordered by date then start.
func Generate(req Request) []Slot {
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}

	templates := make(map[time.Weekday]Template, len(req.Templates))
	for _, t := range req.Templates {
		templates[t.Weekday] = t
	}
	overrides := make(map[Date]Override, len(req.Overrides))
	for _, o := range req.Overrides {
		overrides[o.Date] = o
	}
	booked := make(map[Date][]Booking)
	for _, b := range req.Bookings {
		booked[b.Date] = append(booked[b.Date], b)
	}

	var slots []Slot
	for d := req.From; !d.After(req.To); d = d.AddDays(1) {
		w, ok := ResolveDay(d, templates, overrides)
		if !ok {
			continue
		}
		slots = append(slots, daySlots(d, w, booked[d], req.Now, loc)...)
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Date != slots[j].Date {
			return slots[i].Date.Before(slots[j].Date)
		}
		return slots[i].Start < slots[j].Start
	})
	return slots
}

func daySlots(d Date, w Window, bookings []Booking, now time.Time, loc *time.Location) []Slot {
	remaining := -1
	if w.MaxSessions > 0 {
		remaining = w.MaxSessions - len(bookings)
		if remaining <= 0 {
			return nil
		}
	}

	var out []Slot
	for start := w.Start; start.Add(w.Duration) <= w.End; start = start.Add(w.Duration) {
		slot := Slot{Date: d, Start: start, End: start.Add(w.Duration), Duration: w.Duration}
		if overlapsAny(slot, bookings) {
			continue
		}
		if !now.IsZero() && !slot.StartsAt(loc).After(now) {
			continue
		}
		out = append(out, slot)
		if remaining > 0 && len(out) == remaining {
			break
		}
	}
	return out
}

func overlapsAny(s Slot, bookings []Booking) bool {
	for _, b := range bookings {
		if s.Start < b.end() && b.Start < s.End {
			return true
		}
	}
	return false
}

// Contains reports whether a slot starting at (date, start) is in slots.
func Contains(slots []Slot, date Date, start Clock) (Slot, bool) {
	for _, s := range slots {
		if s.Date == date && s.Start == start {
			return s, true
		}
	}
	return Slot{}, false
}

// First returns the earliest slot, if any.
func First(slots []Slot) (Slot, bool) {
	if len(slots) == 0 {
		return Slot{}, false
	}
	return slots[0], true
}
