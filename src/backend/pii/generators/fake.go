// Package generators produces realistic stand-in values for detected PII.
// Every generator draws from the caller's seeded *rand.Rand so output is
// reproducible for a given seed.
package generators

import (
	"fmt"
	"math/rand"
	"strings"
)

// Func generates a replacement for original.
type Func func(rng *rand.Rand, original string) string

var byEntity = map[string]Func{
	"PERSON":        Person,
	"EMAIL_ADDRESS": Email,
	"PHONE_NUMBER":  Phone,
	"US_SSN":        SSN,
	"CREDIT_CARD":   CreditCard,
	"DATE_TIME":     Date,
	"LOCATION":      City,
	"IP_ADDRESS":    IPAddress,
	"URL":           URL,
	"IBAN_CODE":     IBAN,
	"US_ZIP_CODE":   ZipCode,
}

// For returns the generator for an entity type, or nil if there is none.
func For(entity string) Func {
	return byEntity[entity]
}

// Entities lists the entity types that have a generator.
func Entities() []string {
	out := make([]string, 0, len(byEntity))
	for e := range byEntity {
		out = append(out, e)
	}
	return out
}

var (
	firstNames = []string{
		"Jane", "John", "Alex", "Sam", "Taylor", "Casey", "Jordan", "Riley",
		"Wei", "Mei", "Hiroshi", "Priya", "Amara", "Kofi", "Yusuf", "Layla",
		"Carlos", "Sofia", "Dmitri", "Elena",
	}
	lastNames = []string{
		"Doe", "Smith", "Brown", "Wilson", "Chen", "Kim", "Nguyen", "Patel",
		"Okonkwo", "Mensah", "Hassan", "Garcia", "Lopez", "Ivanov", "Novak", "Murphy",
	}
	cities = []string{
		"Springfield", "Riverside", "Greenville", "Fairview", "Kingston", "Newport",
		"Halifax", "Victoria", "Bristol", "Cambridge", "Dundee", "Salem",
	}
	// RFC 2606 reserved domains only
	domains = []string{"example.com", "example.org", "example.net", "test.org", "invalid.com"}
)

func pick(rng *rand.Rand, list []string) string {
	return list[rng.Intn(len(list))]
}

// Person keeps the word count of the original: one word yields a first name.
func Person(rng *rand.Rand, original string) string {
	if len(strings.Fields(original)) == 1 {
		return pick(rng, firstNames)
	}
	return pick(rng, firstNames) + " " + pick(rng, lastNames)
}

func Email(rng *rand.Rand, original string) string {
	return fmt.Sprintf("%s.%s@%s",
		strings.ToLower(pick(rng, firstNames)),
		strings.ToLower(pick(rng, lastNames)),
		pick(rng, domains))
}

// Phone replaces every digit of the original, keeping its punctuation.
// A leading "+1" country code is kept as is.
func Phone(rng *rand.Rand, original string) string {
	if original == "" {
		return fmt.Sprintf("%d-%d-%d", 200+rng.Intn(800), 200+rng.Intn(800), 1000+rng.Intn(9000))
	}
	prefix := ""
	if strings.HasPrefix(original, "+1") {
		prefix, original = "+1", original[2:]
	}
	return prefix + reshapeDigits(rng, original)
}

func SSN(rng *rand.Rand, original string) string {
	// area 900-999 is never issued
	return fmt.Sprintf("%d-%02d-%04d", 900+rng.Intn(100), 1+rng.Intn(99), 1+rng.Intn(9999))
}

// CreditCard returns a Luhn-valid number in the original's grouping.
func CreditCard(rng *rand.Rand, original string) string {
	n := countDigits(original)
	if n < 13 || n > 19 {
		n = 16
		original = "0000 0000 0000 0000"
	}
	digits := make([]int, n)
	digits[0] = 4
	for i := 1; i < n-1; i++ {
		digits[i] = rng.Intn(10)
	}
	digits[n-1] = luhnCheckDigit(digits[:n-1])

	var b strings.Builder
	i := 0
	for _, r := range original {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte('0' + digits[i]))
			i++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Date keeps the separator and field order of dd/mm/yyyy, mm-dd-yyyy and
// yyyy-mm-dd shapes; anything else becomes an ISO date.
func Date(rng *rand.Rand, original string) string {
	year := 1950 + rng.Intn(55)
	month := 1 + rng.Intn(12)
	day := 1 + rng.Intn(28)

	switch {
	case len(original) == 10 && (original[4] == '-' || original[4] == '/'):
		sep := original[4:5]
		return fmt.Sprintf("%d%s%02d%s%02d", year, sep, month, sep, day)
	case len(original) > 2 && (original[2] == '/' || original[2] == '-'):
		sep := original[2:3]
		return fmt.Sprintf("%02d%s%02d%s%d", month, sep, day, sep, year)
	case len(original) > 1 && (original[1] == '/' || original[1] == '-'):
		sep := original[1:2]
		return fmt.Sprintf("%d%s%d%s%d", month, sep, day, sep, year)
	}
	return fmt.Sprintf("%d-%02d-%02d", year, month, day)
}

func City(rng *rand.Rand, original string) string {
	return pick(rng, cities)
}

// IPAddress draws from the TEST-NET-3 documentation block.
func IPAddress(rng *rand.Rand, original string) string {
	return fmt.Sprintf("203.0.113.%d", 1+rng.Intn(254))
}

func URL(rng *rand.Rand, original string) string {
	paths := []string{"", "/about", "/contact", "/account", "/help"}
	return fmt.Sprintf("https://www.%s%s", pick(rng, domains), pick(rng, paths))
}

// IBAN returns a German-format IBAN with a valid mod-97 checksum.
func IBAN(rng *rand.Rand, original string) string {
	bban := make([]byte, 18)
	for i := range bban {
		bban[i] = byte('0' + rng.Intn(10))
	}
	check := 98 - mod97(string(bban)+"131400") // "DE00" rearranged
	raw := fmt.Sprintf("DE%02d%s", check, bban)
	if !strings.Contains(original, " ") {
		return raw
	}
	var groups []string
	for i := 0; i < len(raw); i += 4 {
		end := i + 4
		if end > len(raw) {
			end = len(raw)
		}
		groups = append(groups, raw[i:end])
	}
	return strings.Join(groups, " ")
}

func ZipCode(rng *rand.Rand, original string) string {
	zip := fmt.Sprintf("%05d", 10000+rng.Intn(89999))
	if len(original) > 5 && original[5] == '-' {
		return fmt.Sprintf("%s-%04d", zip, 1000+rng.Intn(8999))
	}
	return zip
}

func reshapeDigits(rng *rand.Rand, s string) string {
	b := []byte(s)
	first := true
	for i, c := range b {
		if c < '0' || c > '9' {
			continue
		}
		if first {
			// avoid a leading 0 or 1 in the area code
			b[i] = byte('2' + rng.Intn(8))
			first = false
			continue
		}
		b[i] = byte('0' + rng.Intn(10))
	}
	return string(b)
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func luhnCheckDigit(payload []int) int {
	sum := 0
	for i := len(payload) - 1; i >= 0; i-- {
		d := payload[i]
		if (len(payload)-1-i)%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return (10 - sum%10) % 10
}

func mod97(digits string) int {
	rem := 0
	for _, c := range digits {
		rem = (rem*10 + int(c-'0')) % 97
	}
	return rem
}
