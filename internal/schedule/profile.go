// Package schedule turns nominal task durations into concrete time windows. It is
// the single implementation of the duration, break and window rules; the store,
// the break tracker, the bulk recompute and the HTTP surface all call into it.
//
// Everything here is pure: no I/O, no clock reads.
package schedule

import "workshop-scheduler/internal/model"

// BreakThresholdHours is the 6-hour rule: breaks bind only when a person's
// average daily working time reaches this value.
const BreakThresholdHours = 6.0

// Profile is a person's scheduling parameters after shop defaults are applied.
// The zero Profile describes unassigned work.
type Profile struct {
	PersonID          uint
	Role              model.Role
	DailyHours        float64
	BreakStart        model.Clock
	BreakMinutes      int
	OverheadPercent   float64
	CapabilityPercent float64
}

// Assigned reports whether the profile belongs to a person.
func (p Profile) Assigned() bool { return p.Role != "" }

// NewProfile resolves p against the shop settings. A nil person yields the
// unassigned profile.
//
// A person without a configured break duration gets the shop default break
// duration; there is no other fallback value.
func NewProfile(p *model.Person, s model.ShopSettings) Profile {
	if p == nil {
		return Profile{}
	}
	prof := Profile{
		PersonID:          p.ID,
		Role:              p.Role,
		DailyHours:        p.DailyHours(),
		BreakStart:        p.BreakStart,
		BreakMinutes:      p.BreakDurationMinutes,
		OverheadPercent:   s.DefaultOverheadPercent,
		CapabilityPercent: 100,
	}
	if prof.BreakMinutes <= 0 {
		prof.BreakMinutes = s.DefaultBreakMinutes
	}
	if p.OverheadPercent != nil {
		prof.OverheadPercent = *p.OverheadPercent
	}
	if p.CapabilityPercent != nil {
		prof.CapabilityPercent = *p.CapabilityPercent
	}
	return prof
}

// BreakMinutesFor returns the break duration that applies to p. Every consumer
// that needs a person's break length reads it here.
func BreakMinutesFor(p model.Person, s model.ShopSettings) int {
	return NewProfile(&p, s).BreakMinutes
}
