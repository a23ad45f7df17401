package integration

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// OrderStatus represents the normalized status of a platform order
// ---------------------------------------------------------------------------

// OrderStatus represents the normalized status of a platform order
type OrderStatus string

const (
	OrderStatusPlaced     OrderStatus = "PLACED"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusDispatched OrderStatus = "DISPATCHED"
	OrderStatusConcluded  OrderStatus = "CONCLUDED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// IsValid returns true if the status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPlaced, OrderStatusConfirmed, OrderStatusDispatched,
		OrderStatusConcluded, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Order Value Objects
// ---------------------------------------------------------------------------

// OrderItem is one line of a normalized order
type OrderItem struct {
	ExternalID string          `json:"external_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Notes      string          `json:"notes,omitempty"`
}

// Order is a platform order normalized to the restaurant's vocabulary
type Order struct {
	ExternalID   string          `json:"external_id"`
	DisplayID    string          `json:"display_id,omitempty"`
	Platform     Platform        `json:"platform"`
	Status       OrderStatus     `json:"status"`
	CustomerName string          `json:"customer_name,omitempty"`
	Items        []OrderItem     `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	DeliveryFee  decimal.Decimal `json:"delivery_fee"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
	Currency     string          `json:"currency"`
	PlacedAt     time.Time       `json:"placed_at"`

	// Raw is the platform payload the order was normalized from
	Raw json.RawMessage `json:"-"`
}

// Validate checks that the order can be applied downstream
func (o *Order) Validate() error {
	if o.ExternalID == "" {
		return fmt.Errorf("%w: missing order id", ErrOrderNormalization)
	}
	if !o.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrOrderNormalization, o.Status)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order %s has no items", ErrOrderNormalization, o.ExternalID)
	}
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %q has non-positive quantity", ErrOrderNormalization, item.Name)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %q has negative price", ErrOrderNormalization, item.Name)
		}
	}
	if o.Total.IsNegative() {
		return fmt.Errorf("%w: order %s has negative total", ErrOrderNormalization, o.ExternalID)
	}
	return nil
}

// RejectedRecord is a raw platform record that failed normalization
type RejectedRecord struct {
	ExternalRef string
	Payload     json.RawMessage
	Reason      string
}

// FetchResult is the outcome of one FetchOrders call
type FetchResult struct {
	Orders   []Order
	Rejected []RejectedRecord
	// Receipts are platform handles that must be acknowledged once every
	// record was applied or stored in the inbox
	Receipts []string
}

// Total returns the number of records the platform returned
func (r *FetchResult) Total() int {
	return len(r.Orders) + len(r.Rejected)
}
