package schedule

import (
	"math"

	"workshop-scheduler/internal/apperr"
	"workshop-scheduler/internal/model"
)

// Duration is the result of applying a person's productivity factor.
type Duration struct {
	NominalMinutes    int     `json:"nominalMinutes"`
	EffectiveMinutes  int     `json:"effectiveMinutes"`
	OverheadPercent   float64 `json:"overheadPercent"`
	CapabilityPercent float64 `json:"capabilityPercent"`
}

// EffectiveDuration converts nominal work minutes into effective minutes.
//
// Technicians get nominal × (1 + overhead/100); apprentices get
// nominal × capability/100; unassigned work keeps the nominal value. Results are
// rounded to the nearest minute and never drop below one minute.
//
// An unusable factor returns a KindComputation error together with the nominal
// duration, so callers can keep going.
func EffectiveDuration(nominal int, p Profile) (Duration, error) {
	d := Duration{
		NominalMinutes:    nominal,
		EffectiveMinutes:  nominal,
		CapabilityPercent: 100,
	}

	switch p.Role {
	case model.RoleTechnician:
		if p.OverheadPercent < 0 || math.IsNaN(p.OverheadPercent) {
			return d, apperr.Computation("schedule.EffectiveDuration",
				"person %d has invalid overhead factor %.1f%%", p.PersonID, p.OverheadPercent)
		}
		d.OverheadPercent = p.OverheadPercent
		d.EffectiveMinutes = roundMinutes(float64(nominal) * (1 + p.OverheadPercent/100))
	case model.RoleApprentice:
		if p.CapabilityPercent <= 0 || math.IsNaN(p.CapabilityPercent) {
			return d, apperr.Computation("schedule.EffectiveDuration",
				"person %d has invalid capability factor %.1f%%", p.PersonID, p.CapabilityPercent)
		}
		d.CapabilityPercent = p.CapabilityPercent
		d.EffectiveMinutes = roundMinutes(float64(nominal) * (p.CapabilityPercent / 100))
	}
	return d, nil
}

func roundMinutes(v float64) int {
	m := int(math.Round(v))
	if m < 1 {
		return 1
	}
	return m
}
