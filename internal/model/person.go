package model

import "time"

// Role distinguishes scheduled personnel.
type Role string

const (
	RoleTechnician Role = "technician"
	RoleApprentice Role = "apprentice"
)

// Person is a technician or apprentice who can be assigned work.
type Person struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	Name            string  `gorm:"size:128;not null" json:"name"`
	Role            Role    `gorm:"size:16;not null;index" json:"role"`
	Active          bool    `gorm:"not null" json:"active"`
	WeeklyHours     float64 `gorm:"not null;default:40" json:"weeklyHours"`
	WorkDaysPerWeek int     `gorm:"not null;default:5" json:"workDaysPerWeek"`

	BreakStart Clock `gorm:"not null;default:720" json:"breakStart"`
	// BreakDurationMinutes of 0 means "not configured"; the shop default applies.
	BreakDurationMinutes int `gorm:"not null;default:0" json:"breakDurationMinutes"`

	SaturdayEnabled bool  `gorm:"not null;default:false" json:"saturdayEnabled"`
	SaturdayStart   Clock `gorm:"not null;default:540" json:"saturdayStart"`
	SaturdayEnd     Clock `gorm:"not null;default:720" json:"saturdayEnd"`

	// OverheadPercent applies to technicians; nil falls back to the shop default.
	OverheadPercent *float64 `json:"overheadPercent,omitempty"`
	// CapabilityPercent applies to apprentices; nil means 100 (standard pace).
	CapabilityPercent *float64 `json:"capabilityPercent,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DailyHours is the average working time per work day.
func (p Person) DailyHours() float64 {
	if p.WorkDaysPerWeek <= 0 {
		return 0
	}
	return p.WeeklyHours / float64(p.WorkDaysPerWeek)
}

// WorksSaturday reports whether the person has usable Saturday hours.
func (p Person) WorksSaturday() bool {
	return p.SaturdayEnabled && p.SaturdayEnd > p.SaturdayStart
}
