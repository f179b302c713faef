package contracts

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout ISO calendar date
const DateLayout = "2006-01-02"

// Date calendar date without time of day, always UTC midnight
type Date struct {
	time.Time
}

// NewDate builds a calendar date
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// Today current calendar date in loc
func Today(loc *time.Location) Date {
	return DateOf(time.Now().In(loc))
}

// ParseDate parses YYYY-MM-DD
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// AddDays shifts the date by n calendar days
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// After reports whether d is strictly later than o
func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

// Before reports whether d is strictly earlier than o
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// Equal reports whether both dates name the same day
func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

// String formats as YYYY-MM-DD
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON encodes as "YYYY-MM-DD" or null for the zero date
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes "YYYY-MM-DD"
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
