package models

import "time"

const (
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusRefunded  = "refunded"
)

// Participant is one user's single entry/attempt within a Round.
// It is mutated only by admission (creation), payment settlement, the
// answering flow, and winner commitment.
type Participant struct {
	ID      string `json:"id" gorm:"primaryKey"`
	RoundID string `json:"round_id" gorm:"not null;index"`

	// Contact
	Email string `json:"email" gorm:"not null;index"`
	Name  string `json:"name" gorm:"not null"`
	Phone string `json:"phone"` // WhatsApp-capable number, optional

	// 💳 Payment
	PaymentStatus      string     `json:"payment_status" gorm:"type:varchar(16);default:'pending';index"`
	PaymentAmount      float64    `json:"payment_amount"` // effective fee after discount
	Currency           string     `json:"currency" gorm:"type:varchar(3);default:'USD'"`
	PaymentProviderRef string     `json:"payment_provider_ref,omitempty"`
	PaymentConfirmedAt *time.Time `json:"payment_confirmed_at,omitempty"`
	RefundedAt         *time.Time `json:"refunded_at,omitempty"`
	UserActionID       *string    `json:"user_action_id,omitempty" gorm:"type:uuid"` // discount consumed at admission, if any
	DiscountApplied    float64    `json:"discount_applied" gorm:"default:0"`

	// ⏱️ Timing (microsecond precision; totals are sums of per-question times)
	PrePaymentAt    *time.Time `json:"pre_payment_at,omitempty"`
	PostPaymentAt   *time.Time `json:"post_payment_at,omitempty"`
	TotalTimeMicros int64      `json:"total_time_micros" gorm:"default:0"`

	// 🎯 Play outcome
	CorrectAnswers int    `json:"correct_answers" gorm:"default:0"`
	QuestionsSeen  int    `json:"questions_seen" gorm:"default:0"`
	GameCompleted  bool   `json:"game_completed" gorm:"default:false"`
	CompletionRank *int   `json:"completion_rank,omitempty"` // NULL unless paid and all answers correct
	IsWinner       bool   `json:"is_winner" gorm:"default:false"`
	ExcludedReason string `json:"excluded_reason,omitempty"` // wrong_answer | timed_out

	// 🕵️ Fraud signals captured at admission (never block admission on their own)
	IPAddress         string  `json:"ip_address"`
	DeviceFingerprint string  `json:"device_fingerprint"`
	SessionID         string  `json:"session_id"`
	FraudScore        float64 `json:"fraud_score" gorm:"default:0"`
	FraudFlags        string  `json:"fraud_flags,omitempty" gorm:"type:text"`

	// Relationships
	Round   Round               `json:"round,omitempty" gorm:"foreignKey:RoundID"`
	Answers []ParticipantAnswer `json:"answers,omitempty" gorm:"foreignKey:ParticipantID;constraint:OnDelete:CASCADE"`

	Timestamps
}

// ParticipantAnswer records one answered question with its elapsed time.
type ParticipantAnswer struct {
	ID            string `json:"id" gorm:"primaryKey"`
	ParticipantID string `json:"participant_id" gorm:"not null;index:idx_answers_participant_question,unique,composite:participant_question"`
	QuestionID    string `json:"question_id" gorm:"not null;index:idx_answers_participant_question,unique,composite:participant_question"`

	ChosenOption  string `json:"chosen_option" gorm:"type:varchar(1)"`
	Correct       bool   `json:"correct"`
	ElapsedMicros int64  `json:"elapsed_micros" gorm:"not null"`

	Timestamps
}
