package launch

import "time"

// DateLayout is the calendar format dates are stored and compared in.
const DateLayout = "2006-01-02"

// Date is a calendar day with no time component, kept in DateLayout form.
type Date string

// DateOf returns the calendar day t falls on in its own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// Time parses d. ok is false when d is not a valid calendar date.
func (d Date) Time() (t time.Time, ok bool) {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Valid reports whether d parses as a calendar date.
func (d Date) Valid() bool {
	_, ok := d.Time()
	return ok
}

// Before reports whether d is strictly earlier than other. Malformed dates on
// either side compare as not before.
func (d Date) Before(other Date) bool {
	dt, ok := d.Time()
	if !ok {
		return false
	}
	ot, ok := other.Time()
	if !ok {
		return false
	}
	return dt.Before(ot)
}

func (d Date) String() string {
	return string(d)
}
