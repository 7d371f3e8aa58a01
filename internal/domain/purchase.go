package domain

import "time"

// Purchase records a confirmed payment-provider session and the report
// object it unlocked. PaymentSessionID is unique so a session can only
// ever be recorded once.
type Purchase struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	PublicID         string    `gorm:"size:36;uniqueIndex;not null" json:"public_id"`
	PaymentSessionID string    `gorm:"size:128;uniqueIndex;not null" json:"-"`
	Email            string    `gorm:"size:256;index" json:"email"`
	ReportObjectKey  string    `gorm:"size:512" json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}
