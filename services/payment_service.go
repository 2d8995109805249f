package services

import (
	"errors"
	"log"
	"time"

	"trivia-prize-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type PaymentService struct {
	DB       *gorm.DB
	Rounds   *RoundService
	Notifier *NotifyService
}

func NewPaymentService(db *gorm.DB, rounds *RoundService, notifier *NotifyService) *PaymentService {
	return &PaymentService{DB: db, Rounds: rounds, Notifier: notifier}
}

// terminal payment statuses and the status each may be reached from.
var settlementFrom = map[string]string{
	models.PaymentStatusPaid:      models.PaymentStatusPending,
	models.PaymentStatusFailed:    models.PaymentStatusPending,
	models.PaymentStatusCancelled: models.PaymentStatusPending,
	models.PaymentStatusRefunded:  models.PaymentStatusPaid,
}

// Settle moves exactly one participant's payment to a terminal outcome.
// The participant row and the round counter move in one transaction, with
// the status change expressed as a conditional update so duplicate provider
// callbacks and concurrent settlements collapse to a single effect.
// Re-applying an outcome the participant already has returns ErrAlreadySettled,
// which callers treat as success.
func (s *PaymentService) Settle(participantID, outcome, providerRef string) (*models.Participant, error) {
	expectedFrom, ok := settlementFrom[outcome]
	if !ok {
		return nil, ErrInvalidTransition
	}

	var participant models.Participant
	becamePaid := false

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&participant, "id = ?", participantID).Error; err != nil {
			return err
		}
		if participant.PaymentStatus == outcome {
			return ErrAlreadySettled
		}

		now := time.Now()
		updates := map[string]interface{}{
			"payment_status": outcome,
		}
		if providerRef != "" {
			updates["payment_provider_ref"] = providerRef
		}
		switch outcome {
		case models.PaymentStatusPaid:
			updates["payment_confirmed_at"] = now
			updates["post_payment_at"] = now
		case models.PaymentStatusRefunded:
			updates["refunded_at"] = now
		}

		res := tx.Model(&models.Participant{}).
			Where("id = ? AND payment_status = ?", participantID, expectedFrom).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost a race, or the entry was never in the expected state.
			var current models.Participant
			if err := tx.First(&current, "id = ?", participantID).Error; err != nil {
				return err
			}
			if current.PaymentStatus == outcome {
				return ErrAlreadySettled
			}
			return ErrInvalidTransition
		}

		switch outcome {
		case models.PaymentStatusPaid:
			var round models.Round
			if err := tx.First(&round, "id = ?", participant.RoundID).Error; err != nil {
				return err
			}
			var game models.Game
			if err := tx.First(&game, "id = ?", round.GameID).Error; err != nil {
				return err
			}
			// Admission admits unlimited pending entries; capacity is enforced
			// here, where money lands. Only an active round below paid capacity
			// accepts the settlement; otherwise the whole transaction rolls
			// back and the entry stays pending for the provider to refund.
			res := tx.Model(&models.Round{}).
				Where("id = ? AND status = ? AND paid_participant_count < ?",
					round.ID, models.RoundStatusActive, game.MaxPlayers).
				Update("paid_participant_count", gorm.Expr("paid_participant_count + 1"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrRoundClosed
			}
			becamePaid = true
		case models.PaymentStatusRefunded:
			if err := tx.Model(&models.Round{}).
				Where("id = ? AND paid_participant_count > 0", participant.RoundID).
				Update("paid_participant_count", gorm.Expr("paid_participant_count - 1")).Error; err != nil {
				return err
			}
			// A refund frees one slot: reopen a full round, but never one
			// whose winner has already been committed.
			res := tx.Model(&models.Round{}).
				Where("id = ? AND status = ? AND winner_participant_id IS NULL",
					participant.RoundID, models.RoundStatusFull).
				Updates(map[string]interface{}{
					"status":    models.RoundStatusActive,
					"filled_at": nil,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				log.Printf("[PAYMENTS] refund reopened round %s", participant.RoundID)
			}
		}

		participant.PaymentStatus = outcome
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Closure runs after the settlement transaction commits; the conditional
	// update inside CloseIfFull makes the double-trigger harmless.
	if becamePaid {
		if _, err := s.Rounds.CloseIfFull(participant.RoundID); err != nil {
			log.Printf("[PAYMENTS] closure check failed for round %s: %v", participant.RoundID, err)
		}
		if s.Notifier != nil {
			s.Notifier.EnqueueEmail(participant.Email, "You're in!",
				"Your entry is confirmed. Answer all questions fastest to win.", PriorityNormal)
		}
	}

	return &participant, nil
}

// SettlePayment is the provider callback endpoint.
// POST /participants/:id/payment
func (s *PaymentService) SettlePayment(c *fiber.Ctx) error {
	type Req struct {
		Outcome     string `json:"outcome" validate:"required,oneof=paid failed cancelled refunded"`
		ProviderRef string `json:"provider_ref,omitempty"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	participant, err := s.Settle(c.Params("id"), req.Outcome, req.ProviderRef)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadySettled):
			// Duplicate provider callback: acknowledge, don't fail.
			return c.JSON(fiber.Map{"message": "already settled", "outcome": req.Outcome})
		case errors.Is(err, ErrInvalidTransition):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "settlement not allowed from current payment state"})
		case errors.Is(err, ErrRoundClosed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "round is no longer accepting paid entries"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "participant not found"})
		}
		log.Printf("[PAYMENTS] settlement failed for participant %s: %v", c.Params("id"), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "settlement failed"})
	}

	return c.JSON(fiber.Map{
		"participant_id": participant.ID,
		"payment_status": participant.PaymentStatus,
	})
}
