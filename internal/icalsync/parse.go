package icalsync

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

const (
	layoutUTC      = "20060102T150405Z"
	layoutFloating = "20060102T150405"
	layoutDate     = "20060102"
)

// Event is one VEVENT of a feed with its times resolved to absolute instants.
type Event struct {
	UID       string
	Sequence  int
	Start     time.Time
	End       time.Time
	AllDay    bool
	Cancelled bool

	RRule        string
	ExDates      []time.Time
	RecurrenceID *time.Time
}

func (e Event) IsOverride() bool {
	return e.RecurrenceID != nil
}

// ParseFeed decodes body and returns its events. Floating and all-day times
// are read in loc. Events that cannot be read are skipped; the feed fails as a
// whole only when it is not a calendar.
func ParseFeed(body []byte, loc *time.Location) ([]Event, int, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, 0, errors.New("empty feed")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("parse calendar: %w", err)
	}

	var (
		events  []Event
		skipped int
	)
	for _, ve := range cal.Events() {
		ev, err := parseEvent(ve, loc)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	return events, skipped, nil
}

func parseEvent(ve *ical.VEvent, loc *time.Location) (Event, error) {
	var ev Event

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || strings.TrimSpace(uid.Value) == "" {
		return ev, errors.New("missing UID")
	}
	ev.UID = strings.TrimSpace(uid.Value)

	if seq := ve.GetProperty(ical.ComponentPropertySequence); seq != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seq.Value)); err == nil {
			ev.Sequence = n
		}
	}

	if st := ve.GetProperty(ical.ComponentPropertyStatus); st != nil {
		ev.Cancelled = strings.EqualFold(strings.TrimSpace(st.Value), string(ical.ObjectStatusCancelled))
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, errors.New("missing DTSTART")
	}
	start, allDay, err := propTime(dtStart, dtStart.Value, loc)
	if err != nil {
		return ev, fmt.Errorf("DTSTART: %w", err)
	}
	ev.Start = start
	ev.AllDay = allDay

	switch {
	case ve.GetProperty(ical.ComponentPropertyDtEnd) != nil:
		dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd)
		end, _, err := propTime(dtEnd, dtEnd.Value, loc)
		if err != nil {
			return ev, fmt.Errorf("DTEND: %w", err)
		}
		ev.End = end
	case ve.GetProperty(ical.ComponentPropertyDuration) != nil:
		d, err := ParseDuration(ve.GetProperty(ical.ComponentPropertyDuration).Value)
		if err != nil {
			return ev, fmt.Errorf("DURATION: %w", err)
		}
		ev.End = ev.Start.Add(d)
	case allDay:
		ev.End = ev.Start.AddDate(0, 0, 1)
	default:
		ev.End = ev.Start
	}

	if rr := ve.GetProperty(ical.ComponentPropertyRrule); rr != nil {
		ev.RRule = strings.TrimSpace(rr.Value)
	}

	for _, ex := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(ex.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, _, err := propTime(ex, part, loc)
			if err != nil {
				return ev, fmt.Errorf("EXDATE: %w", err)
			}
			ev.ExDates = append(ev.ExDates, t)
		}
	}

	if rid := ve.GetProperty(ical.ComponentPropertyRecurrenceId); rid != nil {
		t, _, err := propTime(rid, rid.Value, loc)
		if err != nil {
			return ev, fmt.Errorf("RECURRENCE-ID: %w", err)
		}
		ev.RecurrenceID = &t
	}

	return ev, nil
}

// propTime reads a DATE or DATE-TIME value. A TZID the runtime cannot load
// falls back to loc.
func propTime(prop *ical.IANAProperty, value string, loc *time.Location) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, errors.New("empty value")
	}

	if tzids := prop.ICalParameters[string(ical.ParameterTzid)]; len(tzids) > 0 {
		if tz, err := time.LoadLocation(strings.Trim(tzids[0], `"`)); err == nil {
			loc = tz
		}
	}

	isDate := len(value) == len(layoutDate)
	if vs := prop.ICalParameters[string(ical.ParameterValue)]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		isDate = true
	}

	switch {
	case isDate:
		t, err := time.ParseInLocation(layoutDate, value, loc)
		return t, true, err
	case strings.HasSuffix(value, "Z"):
		t, err := time.Parse(layoutUTC, value)
		return t, false, err
	default:
		t, err := time.ParseInLocation(layoutFloating, value, loc)
		return t, false, err
	}
}

// ParseDuration reads an RFC 5545 duration such as PT1H30M, P1D or P2W.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}

	sign := time.Duration(1)
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if len(s) < 2 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	s = s[1:]

	var (
		total  time.Duration
		inTime bool
		num    int
		digits bool
		parts  int
	)
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
			digits = true
			continue
		case r == 'T':
			if inTime || digits {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			inTime = true
			continue
		}
		if !digits {
			return 0, fmt.Errorf("invalid duration %q", s)
		}

		var unit time.Duration
		switch {
		case r == 'W' && !inTime:
			unit = 7 * 24 * time.Hour
		case r == 'D' && !inTime:
			unit = 24 * time.Hour
		case r == 'H' && inTime:
			unit = time.Hour
		case r == 'M' && inTime:
			unit = time.Minute
		case r == 'S' && inTime:
			unit = time.Second
		default:
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		total += time.Duration(num) * unit
		parts++
		num = 0
		digits = false
	}
	if digits || parts == 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	return sign * total, nil
}
