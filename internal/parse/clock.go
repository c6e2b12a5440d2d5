package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	clockRe  = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	numberRe = regexp.MustCompile(`^T-(\d{4})-(\d+)$`)
)

// DateLayout is the wire and storage format of a calendar day.
const DateLayout = "2006-01-02"

// MinutesPerDay bounds a minutes-of-day value.
const MinutesPerDay = 24 * 60

// Clock converts an "HH:MM" string into minutes since midnight.
func Clock(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", raw)
	}
	h, _ := strconv.Atoi(m[1])
	mn, _ := strconv.Atoi(m[2])
	if h > 23 || mn > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", raw)
	}
	return h*60 + mn, nil
}

// FormatClock renders minutes since midnight as "HH:MM". Values past midnight are
// not wrapped: a shift never crosses a day boundary, so 24:30 means an overrun.
func FormatClock(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Date parses a "YYYY-MM-DD" day in UTC.
func Date(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
	}
	return d, nil
}

// ParsedNumber holds the parts of an appointment number such as T-2026-014.
type ParsedNumber struct {
	Year int
	Seq  int
}

// Number splits a canonical appointment number.
func Number(raw string) (ParsedNumber, error) {
	m := numberRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ParsedNumber{}, fmt.Errorf("unable to parse appointment number: %q", raw)
	}
	year, _ := strconv.Atoi(m[1])
	seq, err := strconv.Atoi(m[2])
	if err != nil {
		return ParsedNumber{}, fmt.Errorf("unable to parse appointment number: %q", raw)
	}
	return ParsedNumber{Year: year, Seq: seq}, nil
}

// FormatNumber is the single formatter for appointment and extension numbers.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("T-%d-%03d", year, seq)
}
