package services

import (
	"sort"

	"trivia-prize-system/models"

	"gorm.io/gorm"
)

type RankingService struct {
	DB *gorm.DB
}

func NewRankingService(db *gorm.DB) *RankingService {
	return &RankingService{DB: db}
}

// OrderFinishers sorts eligible finishers into their completion order:
// ascending total time, ties broken by earliest payment confirmation, then
// lowest participant id. The order is total, so ranking the same data twice
// always yields the same result.
func OrderFinishers(finishers []models.Participant) []models.Participant {
	ordered := make([]models.Participant, len(finishers))
	copy(ordered, finishers)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.TotalTimeMicros != b.TotalTimeMicros {
			return a.TotalTimeMicros < b.TotalTimeMicros
		}
		switch {
		case a.PaymentConfirmedAt != nil && b.PaymentConfirmedAt != nil:
			if !a.PaymentConfirmedAt.Equal(*b.PaymentConfirmedAt) {
				return a.PaymentConfirmedAt.Before(*b.PaymentConfirmedAt)
			}
		case a.PaymentConfirmedAt != nil:
			return true
		case b.PaymentConfirmedAt != nil:
			return false
		}
		return a.ID < b.ID
	})
	return ordered
}

// RecomputeRanks reassigns completion_rank for a round from scratch. Only
// paid, completed, fully-correct entries are eligible; everyone else keeps a
// NULL rank. Idempotent, so it can run on every completion and again during
// finalization.
func (s *RankingService) RecomputeRanks(roundID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var round models.Round
		if err := tx.First(&round, "id = ?", roundID).Error; err != nil {
			return err
		}
		var game models.Game
		if err := tx.First(&game, "id = ?", round.GameID).Error; err != nil {
			return err
		}

		var finishers []models.Participant
		if err := tx.Where(
			"round_id = ? AND payment_status = ? AND game_completed = ? AND correct_answers = ?",
			roundID, models.PaymentStatusPaid, true, game.QuestionsPerRound,
		).Find(&finishers).Error; err != nil {
			return err
		}

		// Clear ranks for entries that lost eligibility (e.g. a refund after
		// completion) before assigning the fresh order.
		if err := tx.Model(&models.Participant{}).
			Where("round_id = ? AND completion_rank IS NOT NULL", roundID).
			Update("completion_rank", nil).Error; err != nil {
			return err
		}

		for i, p := range OrderFinishers(finishers) {
			rank := i + 1
			if err := tx.Model(&models.Participant{}).
				Where("id = ?", p.ID).
				Update("completion_rank", rank).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
