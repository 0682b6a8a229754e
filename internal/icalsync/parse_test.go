package icalsync

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(events ...string) []byte {
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//feed//EN"}
	lines = append(lines, events...)
	lines = append(lines, "END:VCALENDAR")
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func vevent(props ...string) string {
	return strings.Join(append(append([]string{"BEGIN:VEVENT"}, props...), "END:VEVENT"), "\r\n")
}

func TestParseFeed_TimeForms(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	events, skipped, err := ParseFeed(feed(
		vevent("UID:utc", "DTSTART:20310506T090000Z", "DTEND:20310506T100000Z"),
		vevent("UID:tz", "DTSTART;TZID=America/New_York:20310506T090000", "DTEND;TZID=America/New_York:20310506T100000"),
		vevent("UID:floating", "DTSTART:20310506T090000", "DTEND:20310506T093000"),
		vevent("UID:allday", "DTSTART;VALUE=DATE:20310507", "DTEND;VALUE=DATE:20310508"),
		vevent("UID:allday-open", "DTSTART;VALUE=DATE:20310509"),
		vevent("UID:duration", "DTSTART:20310506T120000Z", "DURATION:PT1H30M"),
		vevent("UID:cancelled", "DTSTART:20310506T130000Z", "DTEND:20310506T140000Z", "STATUS:CANCELLED"),
	), berlin)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, events, 7)

	byUID := map[string]Event{}
	for _, ev := range events {
		byUID[ev.UID] = ev
	}

	assert.True(t, byUID["utc"].Start.Equal(time.Date(2031, 5, 6, 9, 0, 0, 0, time.UTC)))

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.True(t, byUID["tz"].Start.Equal(time.Date(2031, 5, 6, 9, 0, 0, 0, ny)))

	assert.True(t, byUID["floating"].Start.Equal(time.Date(2031, 5, 6, 9, 0, 0, 0, berlin)))
	assert.Equal(t, 30*time.Minute, byUID["floating"].End.Sub(byUID["floating"].Start))

	allDay := byUID["allday"]
	assert.True(t, allDay.AllDay)
	assert.True(t, allDay.Start.Equal(time.Date(2031, 5, 7, 0, 0, 0, 0, berlin)))
	assert.True(t, allDay.End.Equal(time.Date(2031, 5, 8, 0, 0, 0, 0, berlin)))
	assert.True(t, byUID["allday-open"].End.Equal(time.Date(2031, 5, 10, 0, 0, 0, 0, berlin)))

	assert.Equal(t, 90*time.Minute, byUID["duration"].End.Sub(byUID["duration"].Start))
	assert.True(t, byUID["cancelled"].Cancelled)
}

func TestParseFeed_SkipsBrokenEvents(t *testing.T) {
	events, skipped, err := ParseFeed(feed(
		vevent("DTSTART:20310506T090000Z", "DTEND:20310506T100000Z"),
		vevent("UID:no-start", "DTEND:20310506T100000Z"),
		vevent("UID:bad-time", "DTSTART:tomorrow", "DTEND:20310506T100000Z"),
		vevent("UID:ok", "DTSTART:20310506T090000Z", "DTEND:20310506T100000Z"),
	), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 3, skipped)
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].UID)
}

func TestParseFeed_Recurrence(t *testing.T) {
	events, _, err := ParseFeed(feed(
		vevent("UID:weekly", "DTSTART:20310505T090000Z", "DTEND:20310505T100000Z",
			"RRULE:FREQ=WEEKLY;COUNT=4", "EXDATE:20310512T090000Z,20310519T090000Z"),
		vevent("UID:weekly", "RECURRENCE-ID:20310526T090000Z", "DTSTART:20310526T140000Z", "DTEND:20310526T150000Z"),
	), time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 2)

	master := events[0]
	assert.Equal(t, "FREQ=WEEKLY;COUNT=4", master.RRule)
	assert.Len(t, master.ExDates, 2)
	assert.False(t, master.IsOverride())

	override := events[1]
	require.True(t, override.IsOverride())
	assert.True(t, override.RecurrenceID.Equal(time.Date(2031, 5, 26, 9, 0, 0, 0, time.UTC)))
}

func TestParseFeed_RejectsNonCalendar(t *testing.T) {
	_, _, err := ParseFeed(nil, time.UTC)
	assert.Error(t, err)

	_, _, err = ParseFeed([]byte("<html>not a calendar</html>"), time.UTC)
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{in: "PT1H", want: time.Hour},
		{in: "PT1H30M", want: 90 * time.Minute},
		{in: "P1D", want: 24 * time.Hour},
		{in: "P1DT2H", want: 26 * time.Hour},
		{in: "P2W", want: 14 * 24 * time.Hour},
		{in: "PT45S", want: 45 * time.Second},
		{in: "-PT15M", want: -15 * time.Minute},
		{in: "", err: true},
		{in: "1H", err: true},
		{in: "PT", err: true},
		{in: "P1H", err: true},
		{in: "PT5", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
