package domain

import "time"

// AccessToken is a one-time key granting access to a purchased report.
// Validity is never cached: a token is usable iff Used is false and
// ExpiresAt is still in the future at the moment of evaluation.
type AccessToken struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Token        string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	SubjectEmail string     `gorm:"size:256;index" json:"subject_email,omitempty"`
	PaymentRef   string     `gorm:"size:128;index" json:"payment_ref,omitempty"`
	ExpiresAt    time.Time  `gorm:"index;not null" json:"expires_at"`
	Used         bool       `gorm:"not null;default:false" json:"used"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Usable reports whether the token can still open the report at instant now.
func (t *AccessToken) Usable(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}

// Expired reports whether the token's lifetime has elapsed at instant now.
func (t *AccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
