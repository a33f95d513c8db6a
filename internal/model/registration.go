package model

import (
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// ParsePaymentStatus accepts any casing of the three known statuses.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch PaymentStatus(strings.ToLower(strings.TrimSpace(s))) {
	case PaymentPending:
		return PaymentPending, true
	case PaymentSuccess:
		return PaymentSuccess, true
	case PaymentFailed:
		return PaymentFailed, true
	}
	return "", false
}

// EventLine is one event bought in a checkout, snapshotted from the
// catalog at order time. Prices are whole rupees.
type EventLine struct {
	EventID          string `json:"eventId" bson:"eventId"`
	EventName        string `json:"eventName" bson:"eventName"`
	EventPrice       int64  `json:"eventPrice" bson:"eventPrice"`
	EventCategory    string `json:"eventCategory,omitempty" bson:"eventCategory,omitempty"`
	EventDate        string `json:"eventDate,omitempty" bson:"eventDate,omitempty"`
	EventDescription string `json:"eventDescription,omitempty" bson:"eventDescription,omitempty"`
}

// Registration records one checkout attempt. User contact fields are a
// snapshot taken when the registration was created.
type Registration struct {
	ID               string         `json:"id"`
	UserID           string         `json:"userId"`
	UserName         string         `json:"userName"`
	UserEmail        string         `json:"userEmail"`
	UserPhone        string         `json:"userPhone"`
	UserSAPID        string         `json:"userSapId,omitempty"`
	Events           []EventLine    `json:"events"`
	TotalAmount      int64          `json:"totalAmount"`
	OrderID          string         `json:"orderId"`
	PaymentStatus    PaymentStatus  `json:"paymentStatus"`
	PaymentSessionID string         `json:"paymentSessionId,omitempty"`
	PaymentDetails   map[string]any `json:"paymentDetails,omitempty"`
	// ReconcileAttempts counts background gateway lookups for this order.
	ReconcileAttempts int        `json:"reconcileAttempts,omitempty"`
	LastCheckedAt     *time.Time `json:"lastCheckedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// LineTotal sums the line item prices.
func (r Registration) LineTotal() int64 {
	var sum int64
	for _, e := range r.Events {
		sum += e.EventPrice
	}
	return sum
}

// HasEvent reports whether eventID is one of the line items.
func (r Registration) HasEvent(eventID string) bool {
	for _, e := range r.Events {
		if e.EventID == eventID {
			return true
		}
	}
	return false
}

// PaymentUpdate is applied by a compare-and-set on the current status.
// A nil Status only replaces the details.
type PaymentUpdate struct {
	From             PaymentStatus
	Status           *PaymentStatus
	PaymentSessionID *string
	Details          map[string]any
}

// AdminRegistration adds the owner's current SAP id to a registration.
type AdminRegistration struct {
	Registration
	SAPID string `json:"sapId"`
}
