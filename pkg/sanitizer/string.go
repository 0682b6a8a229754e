package sanitizer

import (
	"strings"
	"unicode"
)

// MaxReasonLength matches the limit stored cancellation reasons are
// validated against.
const MaxReasonLength = 500

// TrimAndNormalize collapses runs of whitespace into one space and drops
// non-printable runes.
func TrimAndNormalize(s string) string {
	words := strings.FieldsFunc(s, unicode.IsSpace)
	kept := words[:0]
	for _, w := range words {
		if w = strings.Map(printable, w); w != "" {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func printable(r rune) rune {
	if unicode.IsPrint(r) {
		return r
	}
	return -1
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeUserID removes every whitespace rune; member ids never contain
// spaces.
func NormalizeUserID(id string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return printable(r)
	}, id)
}

// NormalizeEmail lowercases the address and strips a mailto: prefix as
// calendar clients send it.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	return strings.TrimPrefix(email, "mailto:")
}

// NormalizeReason collapses whitespace and cuts the text at MaxReasonLength
// runes.
func NormalizeReason(reason string) string {
	reason = TrimAndNormalize(reason)
	runes := []rune(reason)
	if len(runes) <= MaxReasonLength {
		return reason
	}
	return strings.TrimRight(string(runes[:MaxReasonLength]), " ")
}
