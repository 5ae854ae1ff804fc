package caption

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

var timestampRe = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2})[,.](\d{1,3})$`)

// ParseTimestamp converts "HH:MM:SS,mmm" (or with '.') to seconds. Hours may
// run past two digits.
// Fractions shorter than three digits are read as decimal fractions: ",5" is 500ms.
func ParseTimestamp(s string) (float64, error) {
	m := timestampRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	hours, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("timestamp out of range %q", s)
	}
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	frac, err := strconv.ParseFloat("0."+m[4], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp fraction %q: %w", s, err)
	}
	if minutes > 59 || seconds > 59 {
		return 0, fmt.Errorf("timestamp out of range %q", s)
	}
	return float64(hours*3600+minutes*60+seconds) + frac, nil
}

// FormatTimestamp renders seconds as zero-padded "HH:MM:SS,mmm".
// Values are rounded to the nearest millisecond; negatives render as zero.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Round(seconds * 1000))
	millis := total % 1000
	total /= 1000
	secs := total % 60
	total /= 60
	minutes := total % 60
	hours := total / 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
