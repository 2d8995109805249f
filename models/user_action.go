package models

import "time"

const (
	ActionKindReplay   = "replay"
	ActionKindReferral = "referral"
	ActionKindPromo    = "promo"
	ActionKindBundle   = "bundle"
)

const (
	ActionStatusActive  = "active"
	ActionStatusUsed    = "used"
	ActionStatusExpired = "expired"
)

// UserAction is a discount ledger entry earned via replay, referral, promo or
// bundle. Invariant: used_at is set only when status = used, and at most one
// Participant may consume a given action.
type UserAction struct {
	ID        string `json:"id" gorm:"primaryKey"`
	UserEmail string `json:"user_email" gorm:"not null;index"`
	Kind      string `json:"kind" gorm:"type:varchar(16);not null"`
	Code      string `json:"code" gorm:"uniqueIndex;not null"`

	DiscountPercent float64 `json:"discount_percent" gorm:"not null"` // 0–100 of the entry fee

	Status    string     `json:"status" gorm:"type:varchar(16);default:'active';index"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null"`
	UsedAt    *time.Time `json:"used_at,omitempty"`

	// Set when the action is redeemed; a deleted participant nulls the
	// reference rather than cascading the ledger entry away.
	ParticipantID *string `json:"participant_id,omitempty" gorm:"type:uuid"`
	RoundID       *string `json:"round_id,omitempty" gorm:"type:uuid"`

	// Referral bookkeeping
	ReferredEmail string `json:"referred_email,omitempty"`

	Timestamps
}
