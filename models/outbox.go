package models

import "time"

const (
	MessageStatusQueued = "queued"
	MessageStatusSent   = "sent"
	MessageStatusDead   = "dead" // exhausted max_attempts, kept for audit
)

// EmailMessage is a durable outbound email queue row. The core only enqueues;
// the dispatch worker delivers at-least-once with bounded retries.
type EmailMessage struct {
	ID string `json:"id" gorm:"primaryKey"`

	ToEmail  string `json:"to_email" gorm:"not null"`
	Subject  string `json:"subject" gorm:"not null"`
	Body     string `json:"body" gorm:"type:text;not null"`
	Template string `json:"template,omitempty"`

	Priority      int        `json:"priority" gorm:"default:5;index"` // lower dispatches first
	Status        string     `json:"status" gorm:"type:varchar(16);default:'queued';index"`
	Attempts      int        `json:"attempts" gorm:"default:0"`
	MaxAttempts   int        `json:"max_attempts" gorm:"default:5"`
	NextAttemptAt time.Time  `json:"next_attempt_at" gorm:"index"`
	LastError     string     `json:"last_error,omitempty" gorm:"type:text"`
	SentAt        *time.Time `json:"sent_at,omitempty"`

	Timestamps
}

// WhatsAppMessage mirrors EmailMessage for the WhatsApp channel.
type WhatsAppMessage struct {
	ID string `json:"id" gorm:"primaryKey"`

	ToPhone string `json:"to_phone" gorm:"not null"`
	Body    string `json:"body" gorm:"type:text;not null"`

	Priority      int        `json:"priority" gorm:"default:5;index"`
	Status        string     `json:"status" gorm:"type:varchar(16);default:'queued';index"`
	Attempts      int        `json:"attempts" gorm:"default:0"`
	MaxAttempts   int        `json:"max_attempts" gorm:"default:5"`
	NextAttemptAt time.Time  `json:"next_attempt_at" gorm:"index"`
	LastError     string     `json:"last_error,omitempty" gorm:"type:text"`
	SentAt        *time.Time `json:"sent_at,omitempty"`

	Timestamps
}
