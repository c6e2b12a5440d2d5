package model

import "time"

// SettingsID is the primary key of the single settings row.
const SettingsID = 1

// ShopSettings holds shop-wide defaults.
type ShopSettings struct {
	ID uint `gorm:"primaryKey" json:"-"`
	// DefaultOverheadPercent applies to technicians without their own value.
	DefaultOverheadPercent float64 `gorm:"not null" json:"defaultOverheadPercent"`
	// DefaultBreakMinutes applies to persons without a configured break duration.
	DefaultBreakMinutes int `gorm:"not null" json:"defaultBreakMinutes"`
	// LoanerVehicleCount is the size of the loaner vehicle pool.
	LoanerVehicleCount int       `gorm:"not null" json:"loanerVehicleCount"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
