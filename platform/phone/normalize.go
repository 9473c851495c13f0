// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "AE"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	return normalize(input, defaultRegion)
}

// NormalizeE164ForCountry formats a phone number to E.164 using the lead's
// country as the parsing region. Falls back to the default region when the
// country code is empty.
func NormalizeE164ForCountry(input, countryCode string) string {
	region := strings.ToUpper(strings.TrimSpace(countryCode))
	if region == "" {
		region = defaultRegion
	}
	return normalize(input, region)
}

func normalize(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}
