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

type RoundService struct {
	DB *gorm.DB
}

func NewRoundService(db *gorm.DB) *RoundService {
	return &RoundService{DB: db}
}

// AdmitRequest carries everything admission needs, including the fraud
// signals captured at entry time.
type AdmitRequest struct {
	RoundID string `json:"-"`
	Email   string `json:"email" validate:"required,email"`
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone,omitempty"`

	DiscountCode string `json:"discount_code,omitempty"`

	IPAddress         string `json:"-"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
	SessionID         string `json:"session_id,omitempty"`
}

// Admit creates a pending Participant in an active, not-yet-full round.
// The capacity check runs inside the transaction as a conditional update on
// the round row, so two concurrent admissions cannot both take the last slot.
// An optional discount code is redeemed in the same transaction.
func (s *RoundService) Admit(req AdmitRequest) (*models.Participant, error) {
	var participant *models.Participant

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var round models.Round
		if err := tx.First(&round, "id = ?", req.RoundID).Error; err != nil {
			return err
		}
		var game models.Game
		if err := tx.First(&game, "id = ?", round.GameID).Error; err != nil {
			return err
		}
		if game.Status != models.GameStatusActive {
			return ErrRoundClosed
		}

		// Claim a slot: only succeeds while the round is active and below
		// paid capacity. Losing the race means the round closed under us.
		res := tx.Model(&models.Round{}).
			Where("id = ? AND status = ? AND paid_participant_count < ?",
				round.ID, models.RoundStatusActive, game.MaxPlayers).
			Update("participant_count", gorm.Expr("participant_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRoundClosed
		}

		now := time.Now()
		p := models.Participant{
			ID:                uuid.NewString(),
			RoundID:           round.ID,
			Email:             req.Email,
			Name:              req.Name,
			Phone:             req.Phone,
			PaymentStatus:     models.PaymentStatusPending,
			PaymentAmount:     game.EntryFee,
			Currency:          game.Currency,
			PrePaymentAt:      &now,
			IPAddress:         req.IPAddress,
			DeviceFingerprint: req.DeviceFingerprint,
			SessionID:         req.SessionID,
		}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}

		if req.DiscountCode != "" {
			action, effectiveFee, err := redeemActionTx(tx, req.DiscountCode, req.Email, p.ID, round.ID, game.EntryFee)
			if err != nil {
				return err
			}
			updates := map[string]interface{}{
				"payment_amount":   effectiveFee,
				"user_action_id":   action.ID,
				"discount_applied": game.EntryFee - effectiveFee,
			}
			if err := tx.Model(&p).Updates(updates).Error; err != nil {
				return err
			}
			p.PaymentAmount = effectiveFee
			p.UserActionID = &action.ID
			p.DiscountApplied = game.EntryFee - effectiveFee
		}

		participant = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return participant, nil
}

// CloseIfFull transitions a round active → full exactly once when its paid
// count has reached capacity, and spawns the successor round when the game
// auto-restarts. Safe to call repeatedly and from concurrent settlements.
func (s *RoundService) CloseIfFull(roundID string) (bool, error) {
	closed := false

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var round models.Round
		if err := tx.First(&round, "id = ?", roundID).Error; err != nil {
			return err
		}
		var game models.Game
		if err := tx.First(&game, "id = ?", round.GameID).Error; err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&models.Round{}).
			Where("id = ? AND status = ? AND paid_participant_count >= ?",
				round.ID, models.RoundStatusActive, game.MaxPlayers).
			Updates(map[string]interface{}{
				"status":    models.RoundStatusFull,
				"filled_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // not at capacity, or another settlement closed it first
		}
		closed = true

		if game.AutoRestart {
			// A refund can reopen an earlier round while the successor is
			// already taking entries. Filling the reopened round again must
			// not mint another successor on top of the open one.
			var openRounds int64
			if err := tx.Model(&models.Round{}).
				Where("game_id = ? AND status = ?", game.ID, models.RoundStatusActive).
				Count(&openRounds).Error; err != nil {
				return err
			}
			if openRounds == 0 {
				next, err := CreateRound(tx, game.ID)
				if err != nil {
					return fmt.Errorf("failed to open successor round: %w", err)
				}
				log.Printf("[ROUNDS] %s round %d full — opened round %d", game.Name, round.RoundNumber, next.RoundNumber)
			}
		}
		return nil
	})
	return closed, err
}

// CreateRound opens the next round for a game inside the given transaction.
func CreateRound(tx *gorm.DB, gameID string) (*models.Round, error) {
	var maxNumber int
	if err := tx.Model(&models.Round{}).
		Where("game_id = ?", gameID).
		Select("COALESCE(MAX(round_number), 0)").
		Scan(&maxNumber).Error; err != nil {
		return nil, err
	}
	round := models.Round{
		ID:          uuid.NewString(),
		GameID:      gameID,
		RoundNumber: maxNumber + 1,
		Status:      models.RoundStatusActive,
	}
	if err := tx.Create(&round).Error; err != nil {
		return nil, err
	}
	return &round, nil
}

// OpenRound returns the game's current active round.
func (s *RoundService) OpenRound(gameID string) (*models.Round, error) {
	var round models.Round
	err := s.DB.Where("game_id = ? AND status = ?", gameID, models.RoundStatusActive).
		Order("round_number DESC").
		First(&round).Error
	if err != nil {
		return nil, err
	}
	return &round, nil
}

// --- HTTP endpoints ---

// JoinRound admits the caller into a round.
// POST /rounds/:id/join
func (s *RoundService) JoinRound(c *fiber.Ctx) error {
	var req AdmitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Email == "" || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email and name are required"})
	}
	req.RoundID = c.Params("id")
	req.IPAddress = c.IP()

	participant, err := s.Admit(req)
	if err != nil {
		switch {
		case errors.Is(err, ErrRoundClosed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "round is full or no longer active"})
		case errors.Is(err, ErrDiscountExpired):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "discount code has expired"})
		case errors.Is(err, ErrDiscountAlreadyUsed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "discount code already used"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "round or discount code not found"})
		}
		log.Printf("[ROUNDS] admission failed for round %s: %v", req.RoundID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "admission failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"participant_id": participant.ID,
		"round_id":       participant.RoundID,
		"payment_status": participant.PaymentStatus,
		"amount_due":     participant.PaymentAmount,
		"currency":       participant.Currency,
	})
}

// GetRound returns round state with its game.
// GET /rounds/:id
func (s *RoundService) GetRound(c *fiber.Ctx) error {
	var round models.Round
	if err := s.DB.Preload("Game").First(&round, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "round not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(round)
}

// GetOpenRound returns the joinable round for a game.
// GET /games/:id/rounds/open
func (s *RoundService) GetOpenRound(c *fiber.Ctx) error {
	round, err := s.OpenRound(c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no open round for game"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(round)
}
