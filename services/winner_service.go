package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"trivia-prize-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	claimTokenTTL        = 7 * 24 * time.Hour
	replayDiscountPct    = 20.0
	replayDiscountExpiry = 7 * 24 * time.Hour
)

type WinnerService struct {
	DB        *gorm.DB
	Ranking   *RankingService
	Discounts *DiscountService
	Notifier  *NotifyService
}

func NewWinnerService(db *gorm.DB, ranking *RankingService, discounts *DiscountService, notifier *NotifyService) *WinnerService {
	return &WinnerService{DB: db, Ranking: ranking, Discounts: discounts, Notifier: notifier}
}

// FinalizeResult reports what a finalization attempt did.
type FinalizeResult struct {
	Ready     bool    `json:"ready"`
	Committed bool    `json:"committed"`
	WinnerID  *string `json:"winner_id,omitempty"`
}

// Finalize commits the winner for a full round, exactly once.
//
// Readiness: the round is full and every paid participant has either
// completed or sat past the game's completion window (force skips the wait).
// The winner is the rank-1 finisher; with no fully-correct paid finisher the
// round still completes, with no winner. The commit itself is a single
// conditional update on winner_participant_id IS NULL, so of any number of
// concurrent callers exactly one performs it; the rest see ErrWinnerAlreadySet.
func (s *WinnerService) Finalize(roundID string, force bool) (*FinalizeResult, error) {
	var round models.Round
	if err := s.DB.First(&round, "id = ?", roundID).Error; err != nil {
		return nil, err
	}
	if round.Status == models.RoundStatusCompleted {
		return nil, ErrWinnerAlreadySet
	}
	if round.Status != models.RoundStatusFull {
		return nil, ErrInvalidTransition
	}
	var game models.Game
	if err := s.DB.First(&game, "id = ?", round.GameID).Error; err != nil {
		return nil, err
	}

	windowElapsed := force
	if !windowElapsed && round.FilledAt != nil {
		deadline := round.FilledAt.Add(time.Duration(game.CompletionWindowMins) * time.Minute)
		windowElapsed = time.Now().After(deadline)
	}

	var pendingPlayers int64
	if err := s.DB.Model(&models.Participant{}).
		Where("round_id = ? AND payment_status = ? AND game_completed = ?",
			roundID, models.PaymentStatusPaid, false).
		Count(&pendingPlayers).Error; err != nil {
		return nil, err
	}
	if pendingPlayers > 0 && !windowElapsed {
		return &FinalizeResult{Ready: false}, nil
	}

	// Anyone still unfinished at this point is a non-finisher; they never
	// block winner selection.
	if pendingPlayers > 0 {
		if err := s.DB.Model(&models.Participant{}).
			Where("round_id = ? AND payment_status = ? AND game_completed = ?",
				roundID, models.PaymentStatusPaid, false).
			Update("excluded_reason", "timed_out").Error; err != nil {
			return nil, err
		}
	}

	if err := s.Ranking.RecomputeRanks(roundID); err != nil {
		return nil, err
	}

	var first models.Participant
	err := s.DB.Where("round_id = ? AND completion_rank = 1", roundID).First(&first).Error
	noFinisher := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !noFinisher {
		return nil, err
	}

	result := &FinalizeResult{Ready: true}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		updates := map[string]interface{}{
			"status":       models.RoundStatusCompleted,
			"completed_at": now,
		}
		if !noFinisher {
			updates["winner_participant_id"] = first.ID
		}
		res := tx.Model(&models.Round{}).
			Where("id = ? AND status = ? AND winner_participant_id IS NULL",
				roundID, models.RoundStatusFull).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrWinnerAlreadySet
		}

		if noFinisher {
			log.Printf("[WINNER] round %s completed with no fully-correct finisher", roundID)
			return nil
		}

		if err := tx.Model(&models.Participant{}).
			Where("id = ?", first.ID).
			Update("is_winner", true).Error; err != nil {
			return err
		}

		token := models.ClaimToken{
			ID:            uuid.NewString(),
			Token:         uuid.NewString(),
			ParticipantID: first.ID,
			ExpiresAt:     now.Add(claimTokenTTL),
		}
		if err := tx.Create(&token).Error; err != nil {
			return fmt.Errorf("failed to mint claim token: %w", err)
		}

		result.Committed = true
		result.WinnerID = &first.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Committed = result.Committed || noFinisher

	if result.WinnerID != nil {
		s.notifyOutcome(&game, roundID, first)
	}
	return result, nil
}

// notifyOutcome queues the winner's claim link and replay discounts for the
// paid entrants who didn't win.
func (s *WinnerService) notifyOutcome(game *models.Game, roundID string, winner models.Participant) {
	var token models.ClaimToken
	if err := s.DB.First(&token, "participant_id = ?", winner.ID).Error; err != nil {
		log.Printf("[WINNER] claim token missing for winner %s: %v", winner.ID, err)
		return
	}

	s.Notifier.EnqueueEmail(winner.Email,
		fmt.Sprintf("You won the %s!", game.PrizeName),
		fmt.Sprintf("Congratulations %s — you were the fastest correct finisher. Claim your prize: /claim/%s", winner.Name, token.Token),
		PriorityHigh)
	s.Notifier.EnqueueWhatsApp(winner.Phone,
		fmt.Sprintf("You won the %s! Claim link: /claim/%s", game.PrizeName, token.Token),
		PriorityHigh)

	var losers []models.Participant
	if err := s.DB.Where("round_id = ? AND payment_status = ? AND id != ?",
		roundID, models.PaymentStatusPaid, winner.ID).Find(&losers).Error; err != nil {
		log.Printf("[WINNER] failed to load non-winners for round %s: %v", roundID, err)
		return
	}
	for _, p := range losers {
		action, err := s.Discounts.Issue(p.Email, models.ActionKindReplay, replayDiscountPct, time.Now().Add(replayDiscountExpiry))
		if err != nil {
			log.Printf("[WINNER] replay discount issue failed for %s: %v", p.Email, err)
			continue
		}
		s.Notifier.EnqueueEmail(p.Email, "So close! Play again for less",
			fmt.Sprintf("Use code %s for %.0f%% off your next entry.", action.Code, replayDiscountPct),
			PriorityLow)
	}
}

// SweepDueRounds tries to finalize every full round. Called by the scheduler;
// rounds still inside their completion window are left alone.
func (s *WinnerService) SweepDueRounds() {
	var rounds []models.Round
	if err := s.DB.Where("status = ?", models.RoundStatusFull).Find(&rounds).Error; err != nil {
		log.Printf("[WINNER] sweep query failed: %v", err)
		return
	}
	for _, r := range rounds {
		result, err := s.Finalize(r.ID, false)
		if err != nil {
			if errors.Is(err, ErrWinnerAlreadySet) {
				continue // another sweep or request got there first
			}
			log.Printf("[WINNER] finalize failed for round %s: %v", r.ID, err)
			continue
		}
		if result.Committed && result.WinnerID != nil {
			log.Printf("[WINNER] round %s won by participant %s", r.ID, *result.WinnerID)
		}
	}
}

// FinalizeRound is the admin force-finalize endpoint.
// POST /admin/rounds/:id/finalize
func (s *WinnerService) FinalizeRound(c *fiber.Ctx) error {
	result, err := s.Finalize(c.Params("id"), true)
	if err != nil {
		switch {
		case errors.Is(err, ErrWinnerAlreadySet):
			// The race loser's view is still a completed round.
			return c.JSON(fiber.Map{"message": "round already finalized"})
		case errors.Is(err, ErrInvalidTransition):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "round is not full"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "round not found"})
		}
		log.Printf("[WINNER] admin finalize failed for round %s: %v", c.Params("id"), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "finalization failed"})
	}
	return c.JSON(result)
}
