package model

import "time"

// BreakSession is one live break of a person. At most one session per person is
// open (Completed=false); the partial unique index enforces it in the database.
type BreakSession struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	PersonID  uint       `gorm:"not null;uniqueIndex:idx_break_sessions_open,where:completed = false" json:"personId"`
	Date      string     `gorm:"size:10;not null;index" json:"date"`
	StartedAt time.Time  `gorm:"not null" json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Completed bool       `gorm:"not null;default:false;index" json:"completed"`

	// ExpectedMinutes is the person's configured duration at start time.
	ExpectedMinutes int `gorm:"not null" json:"expectedMinutes"`
	// ShiftedMinutes is what the schedule currently assumes for this break.
	ShiftedMinutes int `gorm:"not null;default:0" json:"shiftedMinutes"`

	// LinkedNextAppointmentID is a weak reference, cleared when the appointment is purged.
	LinkedNextAppointmentID *uint `json:"linkedNextAppointmentId,omitempty"`
}

// ExpectedEnd is when the break is due to finish.
func (b BreakSession) ExpectedEnd() time.Time {
	return b.StartedAt.Add(time.Duration(b.ExpectedMinutes) * time.Minute)
}

// BreakShift records how far a break session moved one appointment.
type BreakShift struct {
	SessionID     uint `gorm:"primaryKey" json:"sessionId"`
	AppointmentID uint `gorm:"primaryKey;index" json:"appointmentId"`
	// Running is true when the appointment was in progress and only its end moved.
	Running bool `gorm:"not null;default:false" json:"running"`
	Minutes int  `gorm:"not null" json:"minutes"`
}
