// Package phone canonicalizes Brazilian phone numbers. The Cloud API
// reports senders with the 55 country code while the dashboard stores
// national 10/11-digit numbers; every component that stores or queries
// by phone must agree on one form or conversations fork into duplicates.
package phone

import "strings"

const countryCode = "55"

// onlyDigits strips everything that is not a decimal digit.
func onlyDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize returns the canonical form of a phone number: digits only,
// with the 55 prefix stripped when the remainder is still a full
// national number. A number like 55998887777 (area code 55, 11 digits)
// is left untouched. Empty input yields empty output.
func Normalize(raw string) string {
	digits := onlyDigits(raw)
	if strings.HasPrefix(digits, countryCode) && len(digits) > 11 {
		return digits[len(countryCode):]
	}
	return digits
}

// Variants returns every stored representation a number may have: the
// canonical form plus the alternate with/without the country code.
// Used for variant-aware message queries.
func Variants(raw string) []string {
	digits := onlyDigits(raw)
	if digits == "" {
		return nil
	}
	if strings.HasPrefix(digits, countryCode) && len(digits) > 11 {
		return []string{digits[len(countryCode):], digits}
	}
	if len(digits) <= 11 {
		return []string{digits, countryCode + digits}
	}
	return []string{digits}
}

// FormatOutbound prepares a number for the Cloud API, which requires
// the country code. National 10/11-digit numbers get 55 prepended.
func FormatOutbound(raw string) string {
	digits := onlyDigits(raw)
	if len(digits) == 10 || len(digits) == 11 {
		return countryCode + digits
	}
	return digits
}
