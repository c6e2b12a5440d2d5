package schedule

import (
	"time"

	"workshop-scheduler/internal/model"
)

// NextBusinessDay returns the first valid work day after day. Sundays are always
// skipped. Saturdays are valid only for a person with Saturday work enabled;
// without a person, Saturday is skipped shop-wide.
func NextBusinessDay(day time.Time, p *model.Person) time.Time {
	d := day.AddDate(0, 0, 1)
	for {
		switch d.Weekday() {
		case time.Sunday:
		case time.Saturday:
			if p != nil && p.WorksSaturday() {
				return d
			}
		default:
			return d
		}
		d = d.AddDate(0, 0, 1)
	}
}
