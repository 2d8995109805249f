package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"trivia-prize-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DiscountService struct {
	DB *gorm.DB
}

func NewDiscountService(db *gorm.DB) *DiscountService {
	return &DiscountService{DB: db}
}

// Issue creates an active discount action with an expiry. Codes are short,
// uppercase and unique.
func (s *DiscountService) Issue(userEmail, kind string, percent float64, expiresAt time.Time) (*models.UserAction, error) {
	if percent <= 0 || percent > 100 {
		return nil, fmt.Errorf("discount percent out of range: %.2f", percent)
	}
	action := models.UserAction{
		ID:              uuid.NewString(),
		UserEmail:       strings.ToLower(userEmail),
		Kind:            kind,
		Code:            generateCode(),
		DiscountPercent: percent,
		Status:          models.ActionStatusActive,
		ExpiresAt:       expiresAt,
	}
	if err := s.DB.Create(&action).Error; err != nil {
		return nil, err
	}
	return &action, nil
}

// generateCode derives a short human-typable code from a fresh uuid.
func generateCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:10])
}

// DiscountedFee applies a percent discount to the entry fee, floored at zero.
func DiscountedFee(entryFee, percent float64) float64 {
	fee := entryFee * (1 - percent/100)
	if fee < 0 {
		return 0
	}
	return fee
}

// redeemActionTx consumes a discount action inside an admission transaction.
// The flip active → used is a conditional update on status, so of concurrent
// redeemers exactly one succeeds; expiry is checked at use time, never by a
// timer.
func redeemActionTx(tx *gorm.DB, code, userEmail, participantID, roundID string, entryFee float64) (*models.UserAction, float64, error) {
	var action models.UserAction
	err := tx.Where("code = ? AND user_email = ?", strings.ToUpper(strings.TrimSpace(code)), strings.ToLower(userEmail)).
		First(&action).Error
	if err != nil {
		return nil, 0, err
	}
	if action.Status == models.ActionStatusUsed {
		return nil, 0, ErrDiscountAlreadyUsed
	}
	if action.Status == models.ActionStatusExpired || time.Now().After(action.ExpiresAt) {
		return nil, 0, ErrDiscountExpired
	}

	now := time.Now()
	res := tx.Model(&models.UserAction{}).
		Where("id = ? AND status = ?", action.ID, models.ActionStatusActive).
		Updates(map[string]interface{}{
			"status":         models.ActionStatusUsed,
			"used_at":        now,
			"participant_id": participantID,
			"round_id":       roundID,
		})
	if res.Error != nil {
		return nil, 0, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, 0, ErrDiscountAlreadyUsed
	}

	action.Status = models.ActionStatusUsed
	action.UsedAt = &now
	return &action, DiscountedFee(entryFee, action.DiscountPercent), nil
}

// ExpireSweep marks overdue active actions as expired. Bookkeeping only:
// redemption already rejects past-expiry actions at use time.
func (s *DiscountService) ExpireSweep() {
	res := s.DB.Model(&models.UserAction{}).
		Where("status = ? AND expires_at < ?", models.ActionStatusActive, time.Now()).
		Update("status", models.ActionStatusExpired)
	if res.Error != nil {
		log.Printf("[DISCOUNTS] expiry sweep failed: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("[DISCOUNTS] expired %d overdue actions", res.RowsAffected)
	}
}

// --- HTTP endpoints ---

// QuoteDiscount prices a code against a game's entry fee without consuming it.
// POST /actions/quote
func (s *DiscountService) QuoteDiscount(c *fiber.Ctx) error {
	type Req struct {
		Code   string `json:"code" validate:"required"`
		Email  string `json:"email" validate:"required,email"`
		GameID string `json:"game_id" validate:"required"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Code == "" || req.Email == "" || req.GameID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "code, email and game_id are required"})
	}

	var game models.Game
	if err := s.DB.First(&game, "id = ?", req.GameID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
	}

	var action models.UserAction
	err := s.DB.Where("code = ? AND user_email = ?",
		strings.ToUpper(strings.TrimSpace(req.Code)), strings.ToLower(req.Email)).
		First(&action).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "discount code not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if action.Status == models.ActionStatusUsed {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "discount code already used"})
	}
	if action.Status == models.ActionStatusExpired || time.Now().After(action.ExpiresAt) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "discount code has expired"})
	}

	return c.JSON(fiber.Map{
		"code":             action.Code,
		"kind":             action.Kind,
		"discount_percent": action.DiscountPercent,
		"entry_fee":        game.EntryFee,
		"effective_fee":    DiscountedFee(game.EntryFee, action.DiscountPercent),
		"expires_at":       action.ExpiresAt,
	})
}

// IssueDiscount lets an admin grant a promo/referral/bundle discount.
// POST /admin/actions
func (s *DiscountService) IssueDiscount(c *fiber.Ctx) error {
	type Req struct {
		Email         string     `json:"email" validate:"required,email"`
		Kind          string     `json:"kind" validate:"required,oneof=replay referral promo bundle"`
		Percent       float64    `json:"percent" validate:"required,gt=0,lte=100"`
		ExpiresAt     *time.Time `json:"expires_at,omitempty"`
		ReferredEmail string     `json:"referred_email,omitempty"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	switch req.Kind {
	case models.ActionKindReplay, models.ActionKindReferral, models.ActionKindPromo, models.ActionKindBundle:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "kind must be replay, referral, promo or bundle"})
	}
	if req.Email == "" || req.Percent <= 0 || req.Percent > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email and percent in (0,100] are required"})
	}

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	if req.ExpiresAt != nil {
		expiresAt = *req.ExpiresAt
	}

	action, err := s.Issue(req.Email, req.Kind, req.Percent, expiresAt)
	if err != nil {
		log.Printf("[DISCOUNTS] issue failed for %s: %v", req.Email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to issue discount"})
	}
	if req.ReferredEmail != "" {
		s.DB.Model(action).Update("referred_email", strings.ToLower(req.ReferredEmail))
	}
	return c.Status(fiber.StatusCreated).JSON(action)
}

// ListUserActions returns a user's discount ledger.
// GET /admin/actions?email=
func (s *DiscountService) ListUserActions(c *fiber.Ctx) error {
	email := strings.ToLower(c.Query("email"))
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email query parameter is required"})
	}
	var actions []models.UserAction
	if err := s.DB.Where("user_email = ?", email).Order("created_at DESC").Find(&actions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(actions)
}
