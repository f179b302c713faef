package settlement

import (
	"time"

	"github.com/wonny/pricebattle/internal/contracts"
)

// DefaultHorizonDays one trading week
const DefaultHorizonDays = 5

// TargetDate maturity date for a forecast issued on issue with a horizon in business days.
// Each whole trading week is 7 calendar days, leftover days step over weekends,
// and a result on Saturday or Sunday moves to the following Monday.
// No holiday calendar is consulted.
func TargetDate(issue contracts.Date, horizonDays int) contracts.Date {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	d := issue.AddDays((horizonDays / 5) * 7)
	for rem := horizonDays % 5; rem > 0; {
		d = d.AddDays(1)
		if isWeekday(d) {
			rem--
		}
	}
	return rollToWeekday(d)
}

// rollToWeekday Sat → +2, Sun → +1
func rollToWeekday(d contracts.Date) contracts.Date {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDays(2)
	case time.Sunday:
		return d.AddDays(1)
	default:
		return d
	}
}

func isWeekday(d contracts.Date) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
