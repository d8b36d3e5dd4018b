package calendar

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// View is the month currently displayed plus an optional selected day.
type View struct {
	Year     int        `json:"year"`
	Month    time.Month `json:"month"`
	Selected string     `json:"selected,omitempty"`
}

// NewView normalizes year/month, so month 0 or 13 roll into the
// neighbouring year.
func NewView(year int, month time.Month) View {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return View{Year: t.Year(), Month: t.Month()}
}

// Navigate shifts the view by delta months, keeping the selection.
func (v View) Navigate(delta int) View {
	n := NewView(v.Year, v.Month+time.Month(delta))
	n.Selected = v.Selected
	return n
}

type jumpFormat struct {
	re               *regexp.Regexp
	year, month, day int // submatch positions, day 0 for month-only formats
}

// Jump formats in priority order. The first syntactic match decides.
var jumpFormats = []jumpFormat{
	{re: regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`), year: 1, month: 2, day: 3},
	{re: regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`), year: 3, month: 2, day: 1},
	{re: regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`), year: 3, month: 2, day: 1},
	{re: regexp.MustCompile(`^(\d{4})-(\d{1,2})$`), year: 1, month: 2},
}

// ParseJumpDate parses user input for jump-to-date. hasDay is false for
// month-only input. ok is false when nothing matches or the first matching
// format names a date that does not exist.
func ParseJumpDate(raw string) (t time.Time, hasDay bool, ok bool) {
	raw = strings.TrimSpace(raw)
	for _, f := range jumpFormats {
		m := f.re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[f.year])
		month, _ := strconv.Atoi(m[f.month])
		day := 1
		if f.day > 0 {
			day, _ = strconv.Atoi(m[f.day])
		}
		if month < 1 || month > 12 || day < 1 {
			return time.Time{}, false, false
		}
		t = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Day() != day || int(t.Month()) != month {
			return time.Time{}, false, false
		}
		return t, f.day > 0, true
	}
	return time.Time{}, false, false
}

// Jump moves the view to the month of raw and selects the day when one was
// given. Unparseable input leaves the view untouched.
func (v View) Jump(raw string) (View, bool) {
	t, hasDay, ok := ParseJumpDate(raw)
	if !ok {
		return v, false
	}
	n := NewView(t.Year(), t.Month())
	if hasDay {
		n.Selected = DateKey(t)
	}
	return n, true
}
