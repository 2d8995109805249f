package models

import "time"

// Question is a multiple-choice trivia question in a game's pool.
type Question struct {
	ID     string `json:"id" gorm:"primaryKey"`
	GameID string `json:"game_id" gorm:"not null;index"`

	Text     string `json:"text" gorm:"type:text;not null"`
	OptionA  string `json:"option_a" gorm:"not null"`
	OptionB  string `json:"option_b" gorm:"not null"`
	OptionC  string `json:"option_c" gorm:"not null"`
	OptionD  string `json:"option_d" gorm:"not null"`
	Correct  string `json:"-" gorm:"type:varchar(1);not null"` // a|b|c|d, never serialized to players
	Category string `json:"category"`
	Active   bool   `json:"active" gorm:"default:true"`

	Timestamps
}

// ParticipantQuestionHistory tracks per-user question exposure so a user is
// never shown the same question twice for a given game.
type ParticipantQuestionHistory struct {
	ID         string `json:"id" gorm:"primaryKey"`
	Email      string `json:"email" gorm:"not null;index:idx_history_email_game_question,unique,composite:email_game_question"`
	GameID     string `json:"game_id" gorm:"not null;index:idx_history_email_game_question,unique,composite:email_game_question"`
	QuestionID string `json:"question_id" gorm:"not null;index:idx_history_email_game_question,unique,composite:email_game_question"`

	ParticipantID string    `json:"participant_id" gorm:"index"`
	ShownAt       time.Time `json:"shown_at" gorm:"autoCreateTime"`
}
