// Package sanitizer normalizes user supplied booking and calendar input.
//
// All normalization functions are idempotent: applying them twice yields the
// same result as applying them once. Invalid input is returned as an empty
// string rather than an error so the validator can report it.
//
// Normalization includes:
//   - Phone numbers: E.164 format (+[country][number])
//   - Emails: trimmed and lowercased
//   - Names: collapsed whitespace
//   - Feed URLs: webcal scheme mapped to https, host lowercased, path and query kept verbatim
//   - Slices: duplicates and empty values removed after normalization
package sanitizer
