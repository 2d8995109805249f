package models

import "time"

const (
	FulfillmentStatusPending    = "pending"
	FulfillmentStatusProcessing = "processing"
	FulfillmentStatusShipped    = "shipped"
	FulfillmentStatusDelivered  = "delivered"
	FulfillmentStatusCancelled  = "cancelled"
	FulfillmentStatusReturned   = "returned"
)

// PrizeFulfillment tracks shipping for a winning Participant. delivered_at
// implies a prior shipped transition; transitions are validated by
// FulfillmentTransitionAllowed.
type PrizeFulfillment struct {
	ID            string `json:"id" gorm:"primaryKey"`
	ParticipantID string `json:"participant_id" gorm:"not null;uniqueIndex"`

	Status string `json:"status" gorm:"type:varchar(16);default:'pending';index"`

	// Shipping details collected through the claim flow
	RecipientName string `json:"recipient_name"`
	AddressLine1  string `json:"address_line1"`
	AddressLine2  string `json:"address_line2,omitempty"`
	City          string `json:"city"`
	Region        string `json:"region,omitempty"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country" gorm:"type:varchar(2)"`

	Carrier        string     `json:"carrier,omitempty"`
	TrackingNumber string     `json:"tracking_number,omitempty"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`

	Participant Participant `json:"participant,omitempty" gorm:"foreignKey:ParticipantID"`

	Timestamps
}

// fulfillmentTransitions enumerates every legal status move in one place so
// an illegal transition is a lookup miss, not a scattered runtime check.
var fulfillmentTransitions = map[string][]string{
	FulfillmentStatusPending:    {FulfillmentStatusProcessing, FulfillmentStatusCancelled},
	FulfillmentStatusProcessing: {FulfillmentStatusShipped, FulfillmentStatusCancelled},
	FulfillmentStatusShipped:    {FulfillmentStatusDelivered, FulfillmentStatusReturned},
	FulfillmentStatusDelivered:  {FulfillmentStatusReturned},
}

// FulfillmentTransitionAllowed reports whether from → to is a legal move.
func FulfillmentTransitionAllowed(from, to string) bool {
	for _, next := range fulfillmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
