package icalsync

import (
	"sort"
	"time"

	"cowork/internal/bookings/conflict"

	"github.com/teambition/rrule-go"
)

const DefaultMaxOccurrences = 5000

// Occurrence is one concrete busy interval of a feed. UID is stable across
// passes: the event UID for single events, <uid>/<original start> for
// instances of a recurring one.
type Occurrence struct {
	UID      string
	Interval conflict.Interval
}

type ExpandOptions struct {
	// From drops occurrences that end at or before it.
	From time.Time
	// To drops occurrences that start at or after it.
	To time.Time
	// MaxOccurrences caps the instances produced by one recurring event.
	MaxOccurrences int
}

// ExpandResult lists the occurrences in (start, uid) order and the UIDs whose
// rules could not be expanded or hit the cap.
type ExpandResult struct {
	Occurrences []Occurrence
	Truncated   []string
	Invalid     []string
}

// Expand turns parsed events into occurrences within the window. Cancelled
// events and zero-length intervals are dropped.
func Expand(events []Event, opts ExpandOptions) ExpandResult {
	if opts.MaxOccurrences <= 0 {
		opts.MaxOccurrences = DefaultMaxOccurrences
	}

	masters := map[string]Event{}
	overrides := map[string][]Event{}
	var order []string
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		prev, seen := masters[ev.UID]
		if !seen {
			order = append(order, ev.UID)
		}
		if !seen || ev.Sequence >= prev.Sequence {
			masters[ev.UID] = ev
		}
	}
	for uid := range overrides {
		if _, ok := masters[uid]; !ok {
			order = append(order, uid)
		}
	}

	var res ExpandResult
	emitted := map[string]bool{}
	emit := func(uid string, start, end time.Time) {
		if emitted[uid] || !start.Before(end) {
			return
		}
		if !end.After(opts.From) || !start.Before(opts.To) {
			return
		}
		emitted[uid] = true
		res.Occurrences = append(res.Occurrences, Occurrence{
			UID:      uid,
			Interval: conflict.Interval{Start: start.UTC(), End: end.UTC()},
		})
	}

	for _, uid := range order {
		master, hasMaster := masters[uid]
		byOriginal := map[int64]Event{}
		for _, ov := range overrides[uid] {
			byOriginal[ov.RecurrenceID.Unix()] = ov
		}

		switch {
		case !hasMaster:
		case master.Cancelled:
			continue
		case master.RRule == "":
			emit(uid, master.Start, master.End)
			continue
		default:
			starts, ok, truncated := instances(master, opts)
			if !ok {
				res.Invalid = append(res.Invalid, uid)
				continue
			}
			if truncated {
				res.Truncated = append(res.Truncated, uid)
			}
			length := master.End.Sub(master.Start)
			for _, s := range starts {
				key := InstanceUID(uid, s)
				if ov, found := byOriginal[s.Unix()]; found {
					delete(byOriginal, s.Unix())
					if !ov.Cancelled {
						emit(key, ov.Start, ov.End)
					}
					continue
				}
				end := s.Add(length)
				if master.AllDay {
					end = s.AddDate(0, 0, 1)
				}
				emit(key, s, end)
			}
		}

		// Overrides that match no generated instance still describe a
		// concrete occurrence of the series.
		for _, ov := range byOriginal {
			if !ov.Cancelled {
				emit(InstanceUID(uid, *ov.RecurrenceID), ov.Start, ov.End)
			}
		}
	}

	sort.Slice(res.Occurrences, func(i, j int) bool {
		a, b := res.Occurrences[i], res.Occurrences[j]
		if !a.Interval.Start.Equal(b.Interval.Start) {
			return a.Interval.Start.Before(b.Interval.Start)
		}
		return a.UID < b.UID
	})
	sort.Strings(res.Truncated)
	sort.Strings(res.Invalid)
	return res
}

// instances returns the start times of master's recurrence that can overlap
// the window, EXDATEs removed.
func instances(master Event, opts ExpandOptions) ([]time.Time, bool, bool) {
	r, err := rrule.StrToRRule(master.RRule)
	if err != nil {
		return nil, false, false
	}
	r.DTStart(master.Start)

	set := &rrule.Set{}
	set.RRule(r)
	for _, ex := range master.ExDates {
		set.ExDate(ex.In(master.Start.Location()))
	}

	loc := master.Start.Location()
	after := opts.From.Add(-master.End.Sub(master.Start)).In(loc)
	if master.AllDay {
		after = opts.From.AddDate(0, 0, -1).In(loc)
	}
	starts := set.Between(after, opts.To.In(loc), true)

	truncated := false
	if len(starts) > opts.MaxOccurrences {
		starts = starts[:opts.MaxOccurrences]
		truncated = true
	}
	return starts, true, truncated
}

func InstanceUID(uid string, originalStart time.Time) string {
	return uid + "/" + originalStart.UTC().Format(time.RFC3339)
}
