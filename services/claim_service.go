package services

import (
	"errors"
	"log"
	"time"

	"trivia-prize-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClaimService struct {
	DB       *gorm.DB
	Notifier *NotifyService
}

func NewClaimService(db *gorm.DB, notifier *NotifyService) *ClaimService {
	return &ClaimService{DB: db, Notifier: notifier}
}

// ShippingDetails is what a winner submits through the claim link.
type ShippingDetails struct {
	RecipientName string `json:"recipient_name" validate:"required"`
	AddressLine1  string `json:"address_line1" validate:"required"`
	AddressLine2  string `json:"address_line2,omitempty"`
	City          string `json:"city" validate:"required"`
	Region        string `json:"region,omitempty"`
	PostalCode    string `json:"postal_code" validate:"required"`
	Country       string `json:"country" validate:"required,len=2"`
}

// Validate checks a claim token: existence, then expiry, then single use.
// Expired-but-unused tokens fail with ErrTokenExpired.
func (s *ClaimService) Validate(tokenValue string) (*models.ClaimToken, error) {
	var token models.ClaimToken
	if err := s.DB.Preload("Participant").First(&token, "token = ?", tokenValue).Error; err != nil {
		return nil, err
	}
	if token.Expired(time.Now()) {
		return nil, ErrTokenExpired
	}
	if token.UsedAt != nil {
		return nil, ErrTokenAlreadyUsed
	}
	return &token, nil
}

// Consume spends the token and opens the prize fulfillment record with the
// winner's shipping details. The conditional update on used_at IS NULL makes
// the token single-use under concurrent claims.
func (s *ClaimService) Consume(tokenValue string, shipping ShippingDetails) (*models.PrizeFulfillment, error) {
	token, err := s.Validate(tokenValue)
	if err != nil {
		return nil, err
	}

	var fulfillment models.PrizeFulfillment
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ClaimToken{}).
			Where("id = ? AND used_at IS NULL", token.ID).
			Update("used_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTokenAlreadyUsed
		}

		fulfillment = models.PrizeFulfillment{
			ID:            uuid.NewString(),
			ParticipantID: token.ParticipantID,
			Status:        models.FulfillmentStatusPending,
			RecipientName: shipping.RecipientName,
			AddressLine1:  shipping.AddressLine1,
			AddressLine2:  shipping.AddressLine2,
			City:          shipping.City,
			Region:        shipping.Region,
			PostalCode:    shipping.PostalCode,
			Country:       shipping.Country,
		}
		return tx.Create(&fulfillment).Error
	})
	if err != nil {
		return nil, err
	}

	if s.Notifier != nil {
		s.Notifier.EnqueueEmail(token.Participant.Email, "Prize claim received",
			"We have your shipping details. You'll get tracking info once your prize ships.", PriorityNormal)
	}
	return &fulfillment, nil
}

// AdvanceFulfillment moves a fulfillment along pending → processing →
// shipped → delivered (with cancelled/returned side exits), enforcing the
// legal-transition table and stamping shipped_at/delivered_at.
func (s *ClaimService) AdvanceFulfillment(id, to, carrier, trackingNumber string) (*models.PrizeFulfillment, error) {
	var fulfillment models.PrizeFulfillment
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&fulfillment, "id = ?", id).Error; err != nil {
			return err
		}
		if !models.FulfillmentTransitionAllowed(fulfillment.Status, to) {
			return ErrInvalidTransition
		}

		now := time.Now()
		updates := map[string]interface{}{"status": to}
		switch to {
		case models.FulfillmentStatusShipped:
			updates["shipped_at"] = now
			if carrier != "" {
				updates["carrier"] = carrier
			}
			if trackingNumber != "" {
				updates["tracking_number"] = trackingNumber
			}
		case models.FulfillmentStatusDelivered:
			updates["delivered_at"] = now
		}

		// Guard on the previous status so two admins can't both move it.
		res := tx.Model(&models.PrizeFulfillment{}).
			Where("id = ? AND status = ?", id, fulfillment.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		return tx.First(&fulfillment, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &fulfillment, nil
}

// --- HTTP endpoints ---

// GetClaim validates a claim link for display.
// GET /claim/:token
func (s *ClaimService) GetClaim(c *fiber.Ctx) error {
	token, err := s.Validate(c.Params("token"))
	if err != nil {
		return claimError(c, err)
	}
	return c.JSON(fiber.Map{
		"participant_name": token.Participant.Name,
		"expires_at":       token.ExpiresAt,
	})
}

// PostClaim consumes the token with shipping details.
// POST /claim/:token
func (s *ClaimService) PostClaim(c *fiber.Ctx) error {
	var shipping ShippingDetails
	if err := c.BodyParser(&shipping); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if shipping.RecipientName == "" || shipping.AddressLine1 == "" || shipping.City == "" ||
		shipping.PostalCode == "" || len(shipping.Country) != 2 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "recipient_name, address_line1, city, postal_code and 2-letter country are required"})
	}

	fulfillment, err := s.Consume(c.Params("token"), shipping)
	if err != nil {
		return claimError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fulfillment)
}

// UpdateFulfillment is the admin shipping-state endpoint.
// PATCH /admin/fulfillments/:id
func (s *ClaimService) UpdateFulfillment(c *fiber.Ctx) error {
	type Req struct {
		Status         string `json:"status" validate:"required"`
		Carrier        string `json:"carrier,omitempty"`
		TrackingNumber string `json:"tracking_number,omitempty"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	fulfillment, err := s.AdvanceFulfillment(c.Params("id"), req.Status, req.Carrier, req.TrackingNumber)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidTransition):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "illegal fulfillment transition"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "fulfillment not found"})
		}
		log.Printf("[CLAIMS] fulfillment update failed for %s: %v", c.Params("id"), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "update failed"})
	}
	return c.JSON(fulfillment)
}

func claimError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "claim link has expired"})
	case errors.Is(err, ErrTokenAlreadyUsed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "claim link already used"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "claim link not found"})
	}
	log.Printf("[CLAIMS] claim failed: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "claim failed"})
}
