package models

import "time"

// ClaimToken is a single-use, time-bounded secret bound to exactly one
// winning Participant. Expired tokens are rejected even if unused; used_at
// is set at most once.
type ClaimToken struct {
	ID            string `json:"id" gorm:"primaryKey"`
	Token         string `json:"token" gorm:"uniqueIndex;not null"`
	ParticipantID string `json:"participant_id" gorm:"not null;uniqueIndex"`

	ExpiresAt time.Time  `json:"expires_at" gorm:"not null"`
	UsedAt    *time.Time `json:"used_at,omitempty"`

	Participant Participant `json:"participant,omitempty" gorm:"foreignKey:ParticipantID"`

	Timestamps
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *ClaimToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
