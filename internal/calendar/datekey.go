// Package calendar reconciles weekly meal plans into a month view.
//
// Every date comparison goes through DateKey on both sides, so a plan day
// stored at any time of day, or in any location, lands on the calendar
// date it names.
package calendar

import (
	"fmt"
	"time"
)

const keyLayout = "2006-01-02"

// DateKey returns the YYYY-MM-DD form of t's calendar date in t's location.
func DateKey(t time.Time) string {
	return t.Format(keyLayout)
}

// Midnight truncates t to 00:00 of its calendar date in its location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDateKey parses a YYYY-MM-DD key into a UTC midnight.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.Parse(keyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date key %q: %w", key, err)
	}
	return t, nil
}

// WeekStart returns the Sunday on or before t, at midnight.
func WeekStart(t time.Time) time.Time {
	t = Midnight(t)
	return t.AddDate(0, 0, -int(t.Weekday()))
}
