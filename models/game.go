package models

const (
	GameStatusActive    = "active"
	GameStatusPaused    = "paused"
	GameStatusCompleted = "completed"
	GameStatusDisabled  = "disabled"
)

// Game is a prize template: each round of a game competes for the same
// physical prize at the same entry fee. Administrative edits aside, it is
// immutable once rounds reference it.
type Game struct {
	ID          string `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"not null"`
	Slug        string `json:"slug" gorm:"uniqueIndex;not null"`
	Description string `json:"description" gorm:"type:text"`

	// 🏆 Prize
	PrizeName     string  `json:"prize_name" gorm:"not null"`
	PrizeValue    float64 `json:"prize_value" gorm:"default:0"`
	Currency      string  `json:"currency" gorm:"type:varchar(3);default:'USD'"`
	PrizeImageURL string  `json:"prize_image_url"`

	// 💰 Entry
	EntryFee   float64 `json:"entry_fee" gorm:"not null"`
	MaxPlayers int     `json:"max_players" gorm:"not null"`

	// 🎮 Play rules
	QuestionsPerRound    int  `json:"questions_per_round" gorm:"default:9"`
	CompletionWindowMins int  `json:"completion_window_mins" gorm:"default:60"` // grace for paid entrants to finish once the round fills
	AutoRestart          bool `json:"auto_restart" gorm:"default:true"`

	Status string `json:"status" gorm:"type:varchar(16);default:'active'"`

	// Relationships
	Rounds []Round `json:"rounds,omitempty" gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`

	Timestamps
}
