package schedule

import "workshop-scheduler/internal/model"

// BreakResult describes how a mandatory break affects a work window.
type BreakResult struct {
	Inserted     bool        `json:"inserted"`
	AddedMinutes int         `json:"addedMinutes"`
	WindowStart  model.Clock `json:"windowStart"`
	WindowEnd    model.Clock `json:"windowEnd"`
}

// InsertBreak decides whether the person's break falls inside
// [start, start+effective) and how much it extends the work.
//
//   - work starts before the break and runs past its start: + full break
//   - work starts inside the break: + (break end - start)
//   - otherwise: no change
//
// Nothing is inserted when the person's daily hours are below the 6-hour
// threshold or no break duration applies.
func InsertBreak(start model.Clock, effective int, p Profile) BreakResult {
	res := BreakResult{
		WindowStart: p.BreakStart,
		WindowEnd:   p.BreakStart.Add(p.BreakMinutes),
	}
	if p.DailyHours < BreakThresholdHours || p.BreakMinutes <= 0 {
		return res
	}

	end := start.Add(effective)
	switch {
	case start < res.WindowStart && end > res.WindowStart:
		res.Inserted = true
		res.AddedMinutes = p.BreakMinutes
	case start >= res.WindowStart && start < res.WindowEnd:
		res.Inserted = true
		res.AddedMinutes = int(res.WindowEnd - start)
	}
	return res
}
