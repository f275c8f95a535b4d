package pii

import (
	"regexp"
	"strings"
)

// Pattern is a single regex recognizer. Score is the confidence attached to
// every match; Validate, when set, rejects matches that fail a checksum.
type Pattern struct {
	Entity   string
	Regex    *regexp.Regexp
	Score    float64
	Validate func(match string) bool
}

// DefaultPatterns returns the built-in recognizers, ordered by entity name.
// Scores follow the usual analyzer convention: checksum-backed and highly
// specific patterns score 1.0, ambiguous number shapes score low so the
// default 0.35 threshold drops them.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Entity:   "CREDIT_CARD",
			Regex:    regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`),
			Score:    1.0,
			Validate: luhnValid,
		},
		{
			Entity: "DATE_TIME",
			Regex:  regexp.MustCompile(`\b(?:(?:19|20)\d{2}-(?:0[1-9]|1[0-2])-(?:0[1-9]|[12]\d|3[01])|(?:0?[1-9]|1[0-2])[/-](?:0?[1-9]|[12]\d|3[01])[/-](?:19|20)\d{2})\b`),
			Score:  0.6,
		},
		{
			Entity: "EMAIL_ADDRESS",
			Regex:  regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
			Score:  1.0,
		},
		{
			Entity:   "IBAN_CODE",
			Regex:    regexp.MustCompile(`\b[A-Z]{2}\d{2}(?: ?[A-Z0-9]{4}){2,7}(?: ?[A-Z0-9]{1,4})?\b`),
			Score:    1.0,
			Validate: ibanValid,
		},
		{
			Entity: "IP_ADDRESS",
			Regex:  regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\b`),
			Score:  0.6,
		},
		{
			Entity: "PHONE_NUMBER",
			Regex:  regexp.MustCompile(`(?:\+?1[-.\s]?)?(?:\(\d{3}\)|\b\d{3})[-.\s]?\d{3}[-.\s]\d{4}\b`),
			Score:  0.75,
		},
		{
			Entity: "URL",
			Regex:  regexp.MustCompile(`\b(?:https?://|www\.)[^\s<>"']+`),
			Score:  0.5,
		},
		{
			Entity: "US_SSN",
			Regex:  regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			Score:  0.85,
		},
		{
			Entity: "US_ZIP_CODE",
			Regex:  regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`),
			Score:  0.3,
		},
	}
}

// luhnValid checks the Luhn checksum of the digits in s.
func luhnValid(s string) bool {
	sum, n := 0, 0
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
		if n%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		n++
	}
	return n >= 13 && sum%10 == 0
}

// ibanValid checks the ISO 13616 mod-97 checksum.
func ibanValid(s string) bool {
	s = strings.ReplaceAll(s, " ", "")
	if len(s) < 15 || len(s) > 34 {
		return false
	}
	rearranged := s[4:] + s[:4]
	rem := 0
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			rem = (rem*10 + int(r-'0')) % 97
		case r >= 'A' && r <= 'Z':
			v := int(r-'A') + 10
			rem = (rem*100 + v) % 97
		default:
			return false
		}
	}
	return rem == 1
}
