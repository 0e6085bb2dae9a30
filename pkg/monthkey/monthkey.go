// Package monthkey handles the canonical YYYY-MM month keys used by classification and forecasting.
package monthkey

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// WindowSize is the number of months in a classification window.
const WindowSize = 12

const layout = "2006-01"

var keyRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// IsKey reports whether value is exactly a YYYY-MM key.
func IsKey(value string) bool {
	return keyRe.MatchString(value)
}

// Format renders the month containing t.
func Format(t time.Time) string {
	return t.Format(layout)
}

// Start returns midnight UTC on the first day of t's month.
func Start(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths shifts a month start by n calendar months.
func AddMonths(t time.Time, n int) time.Time {
	return Start(t).AddDate(0, n, 0)
}

// Parse accepts YYYY-MM or YYYY-MM-DD and returns the month start in UTC.
func Parse(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if IsKey(value) {
		t, err := time.Parse(layout, value)
		if err != nil {
			return time.Time{}, err
		}
		return Start(t), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q: expected YYYY-MM or YYYY-MM-DD", value)
	}
	return Start(t), nil
}

// LastN returns n consecutive keys ending at ref's month, oldest first.
func LastN(ref time.Time, n int) []string {
	if n <= 0 {
		return nil
	}
	end := Start(ref)
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = Format(end.AddDate(0, i-(n-1), 0))
	}
	return keys
}

// Last12 returns the canonical classification window for ref.
func Last12(ref time.Time) []string {
	return LastN(ref, WindowSize)
}

// Index maps a key onto a linear month counter (year*12 + month).
func Index(key string) (int, error) {
	if !IsKey(key) {
		return 0, fmt.Errorf("invalid month key %q", key)
	}
	year, _ := strconv.Atoi(key[:4])
	month, _ := strconv.Atoi(key[5:])
	return year*12 + month, nil
}

// IndexOf maps a time onto the same counter as Index.
func IndexOf(t time.Time) int {
	return t.Year()*12 + int(t.Month())
}
