package model

import "time"

// LoanerBlock takes one vehicle out of the loaner pool, for example while it is
// in repair. Without Until the block holds until it is lifted.
type LoanerBlock struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Note string `gorm:"size:255" json:"note,omitempty"`
	// Until is the last blocked day (YYYY-MM-DD), inclusive.
	Until     *string   `gorm:"column:blocked_until;size:10;index" json:"until,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// BlocksOn reports whether the block applies to day.
func (b LoanerBlock) BlocksOn(day string) bool {
	return b.Until == nil || *b.Until >= day
}
