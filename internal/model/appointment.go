package model

import (
	"time"

	"gorm.io/gorm"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// Open reports whether the appointment still occupies the schedule.
func (s Status) Open() bool {
	return s == StatusPlanned || s == StatusInProgress
}

// Appointment is a customer vehicle booked into the workshop on one day.
type Appointment struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// Number is issued by the store's single sequence, shared with extensions.
	Number   string `gorm:"size:32;uniqueIndex;not null" json:"number"`
	ParentID *uint  `gorm:"index" json:"parentId,omitempty"`

	Date             string `gorm:"size:10;not null;index" json:"date"`
	ArrivalTime      Clock  `gorm:"not null" json:"arrivalTime"`
	NominalMinutes   int    `gorm:"not null" json:"nominalMinutes"`
	AssignedPersonID *uint  `gorm:"index" json:"assignedPersonId,omitempty"`
	Status           Status `gorm:"size:16;not null;default:planned;index" json:"status"`

	LoanerRequested bool `gorm:"not null;default:false" json:"loanerRequested"`
	// LoanerUntil extends a loaner booking over several days (inclusive).
	LoanerUntil *string `gorm:"size:10" json:"loanerUntil,omitempty"`

	StartTime        Clock      `gorm:"not null" json:"startTime"`
	ComputedEnd      Clock      `gorm:"not null" json:"computedEnd"`
	EffectiveMinutes int        `gorm:"not null;default:0" json:"effectiveMinutes"`
	BreakMinutes     int        `gorm:"not null;default:0" json:"breakMinutes"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`

	Items []WorkItem `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

// IsDeleted is the in-memory twin of the gorm soft-delete scope. Both check
// DeletedAt and nothing else.
func (a Appointment) IsDeleted() bool {
	return a.DeletedAt.Valid
}

// UsesLoanerOn reports whether the appointment holds a loaner vehicle on day.
func (a Appointment) UsesLoanerOn(day string) bool {
	if !a.LoanerRequested || a.Status == StatusCancelled || a.IsDeleted() {
		return false
	}
	if a.Date == day {
		return true
	}
	return a.LoanerUntil != nil && a.Date <= day && *a.LoanerUntil >= day
}

// WorkItem is a sub-task of an appointment, possibly assigned to another person.
type WorkItem struct {
	ID               uint  `gorm:"primaryKey" json:"id"`
	AppointmentID    uint  `gorm:"index;not null" json:"appointmentId"`
	PersonID         *uint `gorm:"index" json:"personId,omitempty"`
	Role             Role  `gorm:"size:16" json:"role,omitempty"`
	NominalMinutes   int   `gorm:"not null" json:"nominalMinutes"`
	StartTime        Clock `gorm:"not null" json:"startTime"`
	ComputedEnd      Clock `gorm:"not null" json:"computedEnd"`
	EffectiveMinutes int   `gorm:"not null;default:0" json:"effectiveMinutes"`
	BreakMinutes     int   `gorm:"not null;default:0" json:"breakMinutes"`
}
