package reservation

import (
	"time"
)

// DateOf truncates t to its UTC calendar date, expressed as midnight UTC.
// All reservation dates are compared as dates, never as instants.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Interval is a half-open date range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval normalises both bounds to dates and requires End > Start.
func NewInterval(start, end time.Time) (Interval, error) {
	if start.IsZero() || end.IsZero() {
		return Interval{}, validationErr("start and end dates are required")
	}
	iv := Interval{Start: DateOf(start), End: DateOf(end)}
	if !iv.End.After(iv.Start) {
		return Interval{}, validationErr("end date %s must be after start date %s",
			iv.End.Format(time.DateOnly), iv.Start.Format(time.DateOnly))
	}
	return iv, nil
}

// Overlaps reports strict overlap. Touching intervals ([a,b) and [b,c)) do not
// overlap, which allows back-to-back loans.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Days is the number of whole days covered.
func (i Interval) Days() int {
	return int(i.End.Sub(i.Start).Hours() / 24)
}

func (i Interval) String() string {
	return "[" + i.Start.Format(time.DateOnly) + ", " + i.End.Format(time.DateOnly) + ")"
}
