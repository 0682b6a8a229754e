package sanitizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"israeli local", "054-123-4567", "+972541234567"},
		{"already e164", "+972541234567", "+972541234567"},
		{"us with spaces", "+1 650 253 0000", "+16502530000"},
		{"empty", "   ", ""},
		{"garbage", "call me", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePhone(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizePhone(got), "idempotent")
		})
	}
}

func TestNormalizeFeedURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"webcal", "webcal://Calendar.Example.com/feed.ics", "https://calendar.example.com/feed.ics"},
		{"keeps token case", "https://HOST.example.com/ical/AbC123/basic.ics?Key=XyZ", "https://host.example.com/ical/AbC123/basic.ics?Key=XyZ"},
		{"no scheme", "cal.example.com/a.ics", "https://cal.example.com/a.ics"},
		{"drops fragment", "https://cal.example.com/a.ics#frag", "https://cal.example.com/a.ics"},
		{"other scheme", "ftp://cal.example.com/a.ics", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeFeedURL(tt.input)
			assert.Equal(t, tt.want, got)
			if got != "" {
				assert.Equal(t, got, NormalizeFeedURL(got), "idempotent")
			}
		})
	}
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://cal.example.com/a.ics?redacted", RedactURL("https://user:pw@cal.example.com/a.ics?token=secret"))
}

func TestNormalizeFeedURLs_Dedupes(t *testing.T) {
	got := NormalizeFeedURLs([]string{
		"webcal://cal.example.com/a.ics",
		"https://CAL.example.com/a.ics",
		"",
		"https://cal.example.com/b.ics",
	})
	assert.Equal(t, []string{"https://cal.example.com/a.ics", "https://cal.example.com/b.ics"}, got)
}

func TestTrimAndNormalize(t *testing.T) {
	assert.Equal(t, "Dana Levi", NormalizeName("  Dana \t\n Levi "))
	assert.Equal(t, "", NormalizeName("   "))
	assert.Equal(t, "dana@example.com", NormalizeEmail(" Dana@Example.COM "))
}

func TestNormalizePhone_Regions(t *testing.T) {
	assert.Equal(t, "+16502530000", NormalizePhone("(650) 253-0000", "US"))
	assert.Equal(t, "+16502530000", NormalizePhone("001 650 253 0000"))
	assert.Equal(t, "", NormalizePhone("253-0000", "US"))
}

func TestNormalizeUserIDAndReason(t *testing.T) {
	assert.Equal(t, "member-42", NormalizeUserID(" member -\t42\n"))
	assert.Equal(t, "dana@example.com", NormalizeEmail("MAILTO:Dana@example.com"))
	assert.Equal(t, "double booked", NormalizeReason("double \u0000 booked"))

	long := NormalizeReason(strings.Repeat("ab ", 400))
	assert.LessOrEqual(t, len([]rune(long)), MaxReasonLength)
	assert.False(t, strings.HasSuffix(long, " "))
}
