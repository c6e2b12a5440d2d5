package model

import "time"

// PushSubscription holds the information for a browser push subscription of a
// display surface. PersonID narrows delivery to one person's events.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey" json:"endpoint"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	PersonID  *uint     `gorm:"index" json:"personId,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}
