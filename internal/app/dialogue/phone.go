package dialogue

import "strings"

// NormalizePhone strips everything but digits. A 10-digit number is
// returned as DDDDD-DDDDD with ok=true; digits holds what was found otherwise.
func NormalizePhone(raw string) (formatted string, digits string, ok bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits = b.String()
	if len(digits) != 10 {
		return "", digits, false
	}
	return digits[:5] + "-" + digits[5:], digits, true
}

// CallerIDNumber formats a caller ID the way the dispatcher records it:
// the last 10 digits as DDDDD-DDDDD, or the raw value when it is shorter.
func CallerIDNumber(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return ""
	}
	_, digits, _ := NormalizePhone(from)
	if len(digits) < 10 {
		return from
	}
	last := digits[len(digits)-10:]
	return last[:5] + "-" + last[5:]
}
