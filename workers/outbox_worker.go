package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"trivia-prize-system/models"

	"gorm.io/gorm"
)

// retryBackoff is the delay before the nth redelivery attempt.
var retryBackoff = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	1 * time.Hour,
	6 * time.Hour,
}

// OutboxClient delivers queued email and WhatsApp messages to the external
// messaging provider.
type OutboxClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewOutboxClient(db *gorm.DB) *OutboxClient {
	baseURL := os.Getenv("MESSAGING_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("MESSAGING_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("MESSAGING_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("MESSAGING_SERVICE_TOKEN environment variable is required for message dispatch")
	}

	return &OutboxClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *OutboxClient) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call messaging service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("messaging service returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (c *OutboxClient) SendEmail(ctx context.Context, msg *models.EmailMessage) error {
	return c.post(ctx, "/api/v1/messages/email", map[string]string{
		"to":       msg.ToEmail,
		"subject":  msg.Subject,
		"body":     msg.Body,
		"template": msg.Template,
	})
}

func (c *OutboxClient) SendWhatsApp(ctx context.Context, msg *models.WhatsAppMessage) error {
	return c.post(ctx, "/api/v1/messages/whatsapp", map[string]string{
		"to":   msg.ToPhone,
		"body": msg.Body,
	})
}

// PollOutbox drains both message queues until ctx is cancelled. Each tick
// dispatches due messages in priority order; failures are rescheduled with
// backoff and parked as dead once max_attempts is exhausted.
func PollOutbox(ctx context.Context, client *OutboxClient, pollInterval time.Duration, batchSize int) {
	log.Println("Starting outbox dispatch worker...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Outbox dispatch stopped.")
			return
		case <-ticker.C:
			sent, failed := dispatchEmails(ctx, client, batchSize)
			s2, f2 := dispatchWhatsApp(ctx, client, batchSize)
			sent += s2
			failed += f2
			if sent > 0 || failed > 0 {
				log.Printf("📤 Outbox tick: %d sent, %d rescheduled/dead", sent, failed)
			}
		}
	}
}

func dispatchEmails(ctx context.Context, client *OutboxClient, batchSize int) (sent, failed int) {
	now := time.Now().UTC()

	var due []models.EmailMessage
	if err := client.DB.
		Where("status = ? AND next_attempt_at <= ?", models.MessageStatusQueued, now).
		Order("priority ASC, next_attempt_at ASC").
		Limit(batchSize).
		Find(&due).Error; err != nil {
		log.Printf("❌ Failed to load due emails: %v", err)
		return 0, 0
	}

	for i := range due {
		msg := &due[i]
		if err := client.SendEmail(ctx, msg); err != nil {
			failed++
			rescheduleEmail(client.DB, msg, err)
			continue
		}
		sentAt := time.Now().UTC()
		if err := client.DB.Model(msg).Updates(map[string]interface{}{
			"status":   models.MessageStatusSent,
			"attempts": msg.Attempts + 1,
			"sent_at":  sentAt,
		}).Error; err != nil {
			log.Printf("❌ Failed to mark email %s sent: %v", msg.ID, err)
			continue
		}
		sent++
	}
	return sent, failed
}

func dispatchWhatsApp(ctx context.Context, client *OutboxClient, batchSize int) (sent, failed int) {
	now := time.Now().UTC()

	var due []models.WhatsAppMessage
	if err := client.DB.
		Where("status = ? AND next_attempt_at <= ?", models.MessageStatusQueued, now).
		Order("priority ASC, next_attempt_at ASC").
		Limit(batchSize).
		Find(&due).Error; err != nil {
		log.Printf("❌ Failed to load due WhatsApp messages: %v", err)
		return 0, 0
	}

	for i := range due {
		msg := &due[i]
		if err := client.SendWhatsApp(ctx, msg); err != nil {
			failed++
			rescheduleWhatsApp(client.DB, msg, err)
			continue
		}
		sentAt := time.Now().UTC()
		if err := client.DB.Model(msg).Updates(map[string]interface{}{
			"status":   models.MessageStatusSent,
			"attempts": msg.Attempts + 1,
			"sent_at":  sentAt,
		}).Error; err != nil {
			log.Printf("❌ Failed to mark WhatsApp message %s sent: %v", msg.ID, err)
			continue
		}
		sent++
	}
	return sent, failed
}

// BackoffFor returns the delay before the next delivery attempt. attempts is
// the count including the attempt that just failed.
func BackoffFor(attempts int) time.Duration {
	idx := attempts - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(retryBackoff) {
		idx = len(retryBackoff) - 1
	}
	return retryBackoff[idx]
}

func rescheduleEmail(db *gorm.DB, msg *models.EmailMessage, sendErr error) {
	attempts := msg.Attempts + 1
	updates := map[string]interface{}{
		"attempts":   attempts,
		"last_error": sendErr.Error(),
	}
	if attempts >= msg.MaxAttempts {
		updates["status"] = models.MessageStatusDead
		log.Printf("☠️ Email %s to %s exhausted %d attempts: %v", msg.ID, msg.ToEmail, attempts, sendErr)
	} else {
		updates["next_attempt_at"] = time.Now().UTC().Add(BackoffFor(attempts))
		log.Printf("⚠️ Email %s delivery failed (attempt %d/%d): %v", msg.ID, attempts, msg.MaxAttempts, sendErr)
	}
	if err := db.Model(msg).Updates(updates).Error; err != nil {
		log.Printf("❌ Failed to reschedule email %s: %v", msg.ID, err)
	}
}

func rescheduleWhatsApp(db *gorm.DB, msg *models.WhatsAppMessage, sendErr error) {
	attempts := msg.Attempts + 1
	updates := map[string]interface{}{
		"attempts":   attempts,
		"last_error": sendErr.Error(),
	}
	if attempts >= msg.MaxAttempts {
		updates["status"] = models.MessageStatusDead
		log.Printf("☠️ WhatsApp message %s to %s exhausted %d attempts: %v", msg.ID, msg.ToPhone, attempts, sendErr)
	} else {
		updates["next_attempt_at"] = time.Now().UTC().Add(BackoffFor(attempts))
		log.Printf("⚠️ WhatsApp message %s delivery failed (attempt %d/%d): %v", msg.ID, attempts, msg.MaxAttempts, sendErr)
	}
	if err := db.Model(msg).Updates(updates).Error; err != nil {
		log.Printf("❌ Failed to reschedule WhatsApp message %s: %v", msg.ID, err)
	}
}
