package schedule

import "workshop-scheduler/internal/model"

// Shift moves an appointment by minutes (negative pulls it earlier). A running
// appointment only has its end moved, on the appointment and on the items that
// finish last.
func Shift(a *model.Appointment, minutes int, endOnly bool) {
	if minutes == 0 {
		return
	}
	if endOnly {
		last := a.ComputedEnd
		if len(a.Items) > 0 {
			last = ItemSpan(a.Items).End
		}
		for i := range a.Items {
			if a.Items[i].ComputedEnd == last {
				a.Items[i].ComputedEnd = a.Items[i].ComputedEnd.Add(minutes)
			}
		}
		a.ComputedEnd = a.ComputedEnd.Add(minutes)
		return
	}
	a.StartTime = a.StartTime.Add(minutes)
	a.ComputedEnd = a.ComputedEnd.Add(minutes)
	for i := range a.Items {
		a.Items[i].StartTime = a.Items[i].StartTime.Add(minutes)
		a.Items[i].ComputedEnd = a.Items[i].ComputedEnd.Add(minutes)
	}
}
