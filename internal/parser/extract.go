package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// Shared line-based extraction helpers. Broker mails are `label: value`
// dumps in Danish; tolerance for missing labels is the norm, not the
// exception.

var (
	nameRe    = regexp.MustCompile(`(?im)^\s*(?:navn|kundenavn|name)\s*[:\t]\s*(.+)$`)
	emailLnRe = regexp.MustCompile(`(?im)^\s*(?:e-?mail|mail)\s*[:\t]\s*([^\s]+@[^\s]+)\s*$`)
	emailRe   = regexp.MustCompile(`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
	phoneLnRe = regexp.MustCompile(`(?im)^\s*(?:telefon(?:nummer)?|tlf|mobil|phone)\s*[:\t]\s*([0-9+\s\-()]{8,})\s*$`)
	phoneRe   = regexp.MustCompile(`(\+?45)?\s*(\d{2}[\s-]?\d{2}[\s-]?\d{2}[\s-]?\d{2})\b`)
	addrRe    = regexp.MustCompile(`(?im)^\s*(?:adresse|address)\s*[:\t]\s*(.+)$`)
	sqmRe     = regexp.MustCompile(`(?i)(?:bolig|størrelse|areal|området)?\s*[:\t]?\s*(\d{2,4})\s*(?:m²|m2|kvm|kvadratmeter)`)
	sqmLnRe   = regexp.MustCompile(`(?im)^\s*hvor stort er området\s*[:\t]\s*(\d{2,4})\s*$`)
	roomsRe   = regexp.MustCompile(`(?i)(\d{1,2})\s*(?:rum|værelser|rooms)`)
	postalRe  = regexp.MustCompile(`\b(\d{4})\s+([A-ZÆØÅa-zæøå][A-ZÆØÅa-zæøå .-]+)`)
)

func extractName(subject, body string) string {
	// Broker subjects read "Rene Fly Jensen fra Rengøring.nu".
	if m := regexp.MustCompile(`(?i)^(?:re:\s*)?(.+?)\s+fra\s+rengøring`).FindStringSubmatch(subject); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := nameRe.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func extractEmail(body, from string) string {
	if m := emailLnRe.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	for _, m := range emailRe.FindAllStringSubmatch(body, -1) {
		// Broker relay and own-domain addresses are not the customer.
		lower := strings.ToLower(m[1])
		if strings.Contains(lower, "leadmail") || strings.Contains(lower, "leadpoint") ||
			strings.Contains(lower, "adhelp") || strings.Contains(lower, "rendetalje") {
			continue
		}
		return m[1]
	}
	return ""
}

func extractPhone(body string) string {
	if m := phoneLnRe.FindStringSubmatch(body); m != nil {
		if digits := digitsAndPlus(m[1]); len(strings.TrimPrefix(digits, "+45")) >= 8 {
			return digits
		}
	}
	if m := phoneRe.FindStringSubmatch(body); m != nil {
		return digitsAndPlus(m[0])
	}
	return ""
}

// digitsAndPlus strips formatting from a phone number, keeping a leading +.
func digitsAndPlus(s string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(s) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractAddress(body string) (street, postal, city string) {
	if m := addrRe.FindStringSubmatch(body); m != nil {
		street = strings.TrimSpace(m[1])
		if pm := postalRe.FindStringSubmatch(street); pm != nil {
			postal = pm[1]
			city = strings.TrimSpace(pm[2])
			street = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(strings.Split(street, pm[1])[0]), ","))
		}
		return street, postal, city
	}
	return "", "", ""
}

func extractAreaSqm(body string) int {
	if m := sqmLnRe.FindStringSubmatch(body); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	if m := sqmRe.FindStringSubmatch(body); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}

func extractRooms(body string) int {
	if m := roomsRe.FindStringSubmatch(body); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}

// extractServiceType maps Danish cleaning vocabulary onto the canonical
// service types. Empty when nothing matches; parsers decide whether to
// default to a one-off job.
func extractServiceType(body string) string {
	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "flytterengøring"),
		strings.Contains(lower, "fraflytning"),
		strings.Contains(lower, "udflytning"),
		strings.Contains(lower, "moving out"):
		return "Flytterengøring"
	case strings.Contains(lower, "hovedrengøring"),
		strings.Contains(lower, "dybderengøring"),
		strings.Contains(lower, "spring cleaning"):
		return "Hovedrengøring"
	case strings.Contains(lower, "fast rengøring"),
		strings.Contains(lower, "hver uge"),
		strings.Contains(lower, "hver 14. dag"),
		strings.Contains(lower, "hver anden uge"),
		strings.Contains(lower, "ugentlig"),
		strings.Contains(lower, "abonnement"):
		return "Fast Rengøring"
	case strings.Contains(lower, "rengøring"):
		return "Engangsopgave"
	}
	return ""
}

// fieldConfidence is populated-over-expected, clamped to [0,1].
func fieldConfidence(populated, expected int) float64 {
	if expected <= 0 {
		return 0
	}
	c := float64(populated) / float64(expected)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func countPopulated(values ...string) int {
	n := 0
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}
