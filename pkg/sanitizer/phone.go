package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegions are tried in order for numbers written without a
// country code.
var DefaultPhoneRegions = []string{"IL", "US", "GB", "DE"}

// NormalizePhone returns the guest phone in E.164, or "" when it is not a
// valid number. A number with a leading + or 00 is read on its own country
// code; any other number is tried against regions, or DefaultPhoneRegions
// when none are given.
func NormalizePhone(phone string, regions ...string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	if rest, ok := strings.CutPrefix(phone, "00"); ok {
		phone = "+" + rest
	}
	if strings.HasPrefix(phone, "+") {
		return formatE164(phone, "ZZ")
	}

	if len(regions) == 0 {
		regions = DefaultPhoneRegions
	}
	for _, region := range regions {
		if e164 := formatE164(phone, region); e164 != "" {
			return e164
		}
	}
	return ""
}

func formatE164(phone, region string) string {
	parsed, err := phonenumbers.Parse(phone, region)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return ""
	}
	return phonenumbers.Format(parsed, phonenumbers.E164)
}
