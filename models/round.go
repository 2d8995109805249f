package models

import "time"

const (
	RoundStatusActive    = "active"
	RoundStatusFull      = "full"
	RoundStatusCompleted = "completed"
	RoundStatusCancelled = "cancelled"
)

// Round is one live instance of a Game accepting paid entries up to capacity.
// Invariants: paid_participant_count <= participant_count; status goes
// active → full only when the paid count reaches Game.MaxPlayers; full →
// completed only once a winner is committed (or the round finalizes with
// no correct finisher); winner_participant_id is written at most once.
type Round struct {
	ID          string `json:"id" gorm:"primaryKey"`
	GameID      string `json:"game_id" gorm:"not null;index:idx_rounds_game_number,unique,composite:game_number"`
	RoundNumber int    `json:"round_number" gorm:"not null;index:idx_rounds_game_number,unique,composite:game_number"`

	Status               string `json:"status" gorm:"type:varchar(16);default:'active';index"`
	ParticipantCount     int    `json:"participant_count" gorm:"default:0"`
	PaidParticipantCount int    `json:"paid_participant_count" gorm:"default:0"`

	WinnerParticipantID *string    `json:"winner_participant_id,omitempty" gorm:"type:uuid"`
	FilledAt            *time.Time `json:"filled_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`

	// Relationships
	Game         Game          `json:"game,omitempty" gorm:"foreignKey:GameID"`
	Participants []Participant `json:"participants,omitempty" gorm:"foreignKey:RoundID;constraint:OnDelete:CASCADE"`

	Timestamps
}
