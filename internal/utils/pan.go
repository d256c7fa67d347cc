package utils

import (
	"regexp"
	"strings"
)

// MaxPANLength bounds the identifiers accepted by the API
const MaxPANLength = 32

var nonAlphaNumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// CleanPAN trims surrounding whitespace and drops separators such as
// spaces, dashes and dots
func CleanPAN(pan string) string {
	return nonAlphaNumeric.ReplaceAllString(strings.TrimSpace(pan), "")
}

// IsValidPAN checks that pan is non-empty, alphanumeric and within
// MaxPANLength
func IsValidPAN(pan string) bool {
	if pan == "" || len(pan) > MaxPANLength {
		return false
	}
	return !nonAlphaNumeric.MatchString(pan)
}

// NormalizePAN cleans pan and reports whether the result is valid
func NormalizePAN(pan string) (string, bool) {
	cleaned := CleanPAN(pan)
	return cleaned, IsValidPAN(cleaned)
}
