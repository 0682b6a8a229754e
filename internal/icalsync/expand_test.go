package icalsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2031, 5, 5, 0, 0, 0, 0, time.UTC)

func hour(d, h int) time.Time {
	return monday.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour)
}

func window() ExpandOptions {
	return ExpandOptions{From: monday, To: monday.AddDate(0, 0, 60)}
}

func uids(res ExpandResult) []string {
	out := make([]string, 0, len(res.Occurrences))
	for _, o := range res.Occurrences {
		out = append(out, o.UID)
	}
	return out
}

func TestExpand_SingleEvents(t *testing.T) {
	res := Expand([]Event{
		{UID: "b", Start: hour(1, 9), End: hour(1, 10)},
		{UID: "a", Start: hour(0, 9), End: hour(0, 10)},
		{UID: "zero", Start: hour(0, 11), End: hour(0, 11)},
		{UID: "gone", Start: hour(0, 12), End: hour(0, 13), Cancelled: true},
		{UID: "past", Start: hour(-1, 9), End: hour(0, 0)},
		{UID: "running", Start: hour(-1, 22), End: hour(0, 2)},
		{UID: "far", Start: hour(70, 9), End: hour(70, 10)},
	}, window())

	assert.Equal(t, []string{"running", "a", "b"}, uids(res))
	assert.True(t, res.Occurrences[1].Interval.Start.Equal(hour(0, 9)))
}

func TestExpand_LatestSequenceWins(t *testing.T) {
	res := Expand([]Event{
		{UID: "a", Sequence: 2, Start: hour(0, 14), End: hour(0, 15)},
		{UID: "a", Sequence: 1, Start: hour(0, 9), End: hour(0, 10)},
	}, window())

	require.Len(t, res.Occurrences, 1)
	assert.True(t, res.Occurrences[0].Interval.Start.Equal(hour(0, 14)))
}

func TestExpand_RecurrenceWithExceptions(t *testing.T) {
	events := []Event{
		{
			UID:     "weekly",
			Start:   hour(0, 9),
			End:     hour(0, 10),
			RRule:   "FREQ=WEEKLY;COUNT=5",
			ExDates: []time.Time{hour(7, 9)},
		},
		{UID: "weekly", Start: hour(14, 15), End: hour(14, 16), RecurrenceID: ptr(hour(14, 9))},
		{UID: "weekly", Start: hour(21, 9), End: hour(21, 10), RecurrenceID: ptr(hour(21, 9)), Cancelled: true},
	}

	res := Expand(events, window())

	assert.Equal(t, []string{
		InstanceUID("weekly", hour(0, 9)),
		InstanceUID("weekly", hour(14, 9)),
		InstanceUID("weekly", hour(28, 9)),
	}, uids(res))
	assert.Equal(t, "weekly/2031-05-05T09:00:00Z", res.Occurrences[0].UID)

	moved := res.Occurrences[1].Interval
	assert.True(t, moved.Start.Equal(hour(14, 15)))
	assert.True(t, moved.End.Equal(hour(14, 16)))
	assert.Empty(t, res.Truncated)
	assert.Empty(t, res.Invalid)
}

func TestExpand_RecurrenceBoundedByWindow(t *testing.T) {
	opts := ExpandOptions{From: hour(10, 0), To: hour(13, 0), MaxOccurrences: 100}
	res := Expand([]Event{
		{UID: "daily", Start: hour(0, 9), End: hour(0, 10), RRule: "FREQ=DAILY"},
	}, opts)

	assert.Equal(t, []string{
		InstanceUID("daily", hour(10, 9)),
		InstanceUID("daily", hour(11, 9)),
		InstanceUID("daily", hour(12, 9)),
	}, uids(res))
}

func TestExpand_RecurrenceCap(t *testing.T) {
	opts := window()
	opts.MaxOccurrences = 3
	res := Expand([]Event{
		{UID: "hourly", Start: hour(0, 0), End: hour(0, 0).Add(30 * time.Minute), RRule: "FREQ=HOURLY"},
	}, opts)

	assert.Len(t, res.Occurrences, 3)
	assert.Equal(t, []string{"hourly"}, res.Truncated)
}

func TestExpand_InvalidRule(t *testing.T) {
	res := Expand([]Event{
		{UID: "broken", Start: hour(0, 9), End: hour(0, 10), RRule: "FREQ=SOMETIMES"},
		{UID: "fine", Start: hour(0, 11), End: hour(0, 12)},
	}, window())

	assert.Equal(t, []string{"fine"}, uids(res))
	assert.Equal(t, []string{"broken"}, res.Invalid)
}

func TestExpand_AllDayRecurrenceInZone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	start := time.Date(2031, 5, 6, 0, 0, 0, 0, tokyo)

	res := Expand([]Event{
		{UID: "holiday", Start: start, End: start.AddDate(0, 0, 1), AllDay: true, RRule: "FREQ=DAILY;COUNT=2"},
	}, window())

	require.Len(t, res.Occurrences, 2)
	second := res.Occurrences[1].Interval
	assert.True(t, second.Start.Equal(time.Date(2031, 5, 7, 0, 0, 0, 0, tokyo)))
	assert.Equal(t, 24*time.Hour, second.End.Sub(second.Start))
	assert.Equal(t, time.UTC, second.Start.Location())
}

func ptr(t time.Time) *time.Time {
	return &t
}
