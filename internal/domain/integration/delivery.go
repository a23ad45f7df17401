package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// Address is a pickup or drop-off location
type Address struct {
	Street       string   `json:"street"`
	Number       string   `json:"number"`
	Complement   string   `json:"complement,omitempty"`
	Neighborhood string   `json:"neighborhood,omitempty"`
	City         string   `json:"city"`
	State        string   `json:"state,omitempty"`
	PostalCode   string   `json:"postal_code"`
	Country      string   `json:"country"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

// Line returns a single-line representation used by dispatch services
func (a Address) Line() string {
	line := a.Street
	if a.Number != "" {
		line += ", " + a.Number
	}
	if a.Complement != "" {
		line += " " + a.Complement
	}
	if a.Neighborhood != "" {
		line += " - " + a.Neighborhood
	}
	if a.City != "" {
		line += ", " + a.City
	}
	if a.State != "" {
		line += "/" + a.State
	}
	if a.PostalCode != "" {
		line += " " + a.PostalCode
	}
	return line
}

// Contact is a person reachable about a delivery
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Package is one parcel in a delivery
type Package struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	WeightKg    decimal.Decimal `json:"weight_kg"`
}

// DeliveryQuoteRequest asks a logistics platform to price a delivery
type DeliveryQuoteRequest struct {
	Pickup      Address    `json:"pickup"`
	Dropoff     Address    `json:"dropoff"`
	Packages    []Package  `json:"packages,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// Validate checks the minimal fields every dispatch service needs
func (r *DeliveryQuoteRequest) Validate() error {
	if r.Pickup.Street == "" || r.Pickup.City == "" {
		return NewValidationError("pickup address requires street and city")
	}
	if r.Dropoff.Street == "" || r.Dropoff.City == "" {
		return NewValidationError("dropoff address requires street and city")
	}
	return nil
}

// DeliveryQuote is a priced offer. It is not persisted.
type DeliveryQuote struct {
	QuoteID           string          `json:"quote_id"`
	Price             decimal.Decimal `json:"price"`
	Currency          string          `json:"currency"`
	DistanceMeters    int             `json:"distance_meters,omitempty"`
	EstimatedDuration time.Duration   `json:"estimated_duration,omitempty"`
	ExpiresAt         *time.Time      `json:"expires_at,omitempty"`
}

// DeliveryRequest places a delivery from a previously obtained quote
type DeliveryRequest struct {
	QuoteID   string    `json:"quote_id"`
	Pickup    Address   `json:"pickup"`
	Dropoff   Address   `json:"dropoff"`
	Sender    Contact   `json:"sender"`
	Recipient Contact   `json:"recipient"`
	Packages  []Package `json:"packages,omitempty"`
	// Reference is the restaurant's own order reference
	Reference string `json:"reference,omitempty"`
}

// Validate checks the request before it reaches an adapter
func (r *DeliveryRequest) Validate() error {
	if r.QuoteID == "" {
		return NewValidationError("quote ID is required")
	}
	if r.Recipient.Name == "" || r.Recipient.Phone == "" {
		return NewValidationError("recipient name and phone are required")
	}
	return nil
}

// TrackingStatus is the normalized state of a delivery
type TrackingStatus string

const (
	TrackingStatusPending   TrackingStatus = "PENDING"
	TrackingStatusAssigned  TrackingStatus = "ASSIGNED"
	TrackingStatusPickedUp  TrackingStatus = "PICKED_UP"
	TrackingStatusInTransit TrackingStatus = "IN_TRANSIT"
	TrackingStatusDelivered TrackingStatus = "DELIVERED"
	TrackingStatusCancelled TrackingStatus = "CANCELLED"
	TrackingStatusFailed    TrackingStatus = "FAILED"
)

// DeliveryTracking is the current state of a delivery. It is not persisted.
type DeliveryTracking struct {
	DeliveryID  string         `json:"delivery_id"`
	Status      TrackingStatus `json:"status"`
	StatusCode  string         `json:"status_code,omitempty"`
	DriverName  string         `json:"driver_name,omitempty"`
	DriverPhone string         `json:"driver_phone,omitempty"`
	Latitude    *float64       `json:"latitude,omitempty"`
	Longitude   *float64       `json:"longitude,omitempty"`
	TrackingURL string         `json:"tracking_url,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
