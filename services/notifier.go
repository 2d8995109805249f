package services

import (
	"log"
	"time"

	"trivia-prize-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PriorityHigh   = 1
	PriorityNormal = 5
	PriorityLow    = 9
)

// NotifyService writes outbound messages into the durable queue tables.
// Delivery is the dispatch worker's job; enqueue failures are logged, never
// propagated, because notifications must not fail a settlement or commit.
type NotifyService struct {
	DB *gorm.DB
}

func NewNotifyService(db *gorm.DB) *NotifyService {
	return &NotifyService{DB: db}
}

func (n *NotifyService) EnqueueEmail(to, subject, body string, priority int) {
	msg := models.EmailMessage{
		ID:            uuid.NewString(),
		ToEmail:       to,
		Subject:       subject,
		Body:          body,
		Priority:      priority,
		Status:        models.MessageStatusQueued,
		MaxAttempts:   5,
		NextAttemptAt: time.Now(),
	}
	if err := n.DB.Create(&msg).Error; err != nil {
		log.Printf("[NOTIFY] failed to enqueue email to %s: %v", to, err)
	}
}

func (n *NotifyService) EnqueueWhatsApp(phone, body string, priority int) {
	if phone == "" {
		return
	}
	msg := models.WhatsAppMessage{
		ID:            uuid.NewString(),
		ToPhone:       phone,
		Body:          body,
		Priority:      priority,
		Status:        models.MessageStatusQueued,
		MaxAttempts:   5,
		NextAttemptAt: time.Now(),
	}
	if err := n.DB.Create(&msg).Error; err != nil {
		log.Printf("[NOTIFY] failed to enqueue whatsapp to %s: %v", phone, err)
	}
}
