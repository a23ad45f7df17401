package platform

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// IFoodTokenResponse is returned by the OAuth token endpoint
type IFoodTokenResponse struct {
	AccessToken string `json:"accessToken"`
	Type        string `json:"type"`
	ExpiresIn   int    `json:"expiresIn"`
}

// IFoodMerchant is returned by the merchant details endpoint
type IFoodMerchant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IFoodEvent is one entry of the events polling endpoint
type IFoodEvent struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	FullCode  string    `json:"fullCode"`
	OrderID   string    `json:"orderId"`
	CreatedAt time.Time `json:"createdAt"`
}

// IFoodAcknowledgment acknowledges a polled event
type IFoodAcknowledgment struct {
	ID string `json:"id"`
}

// IFoodOrder is the order details payload
type IFoodOrder struct {
	ID        string             `json:"id"`
	DisplayID string             `json:"displayId"`
	OrderType string             `json:"orderType"`
	CreatedAt time.Time          `json:"createdAt"`
	Customer  *IFoodCustomer     `json:"customer"`
	Items     []IFoodOrderItem   `json:"items"`
	Total     *IFoodOrderTotal   `json:"total"`
	Merchant  *IFoodOrderContext `json:"merchant"`
}

// IFoodCustomer is the customer block of an order
type IFoodCustomer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IFoodOrderContext identifies the merchant an order belongs to
type IFoodOrderContext struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IFoodOrderItem is one order line
type IFoodOrderItem struct {
	ID           string          `json:"id"`
	ExternalCode string          `json:"externalCode"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
	Observations string          `json:"observations"`
}

// IFoodOrderTotal is the totals block of an order
type IFoodOrderTotal struct {
	SubTotal    decimal.Decimal `json:"subTotal"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	Benefits    decimal.Decimal `json:"benefits"`
	OrderAmount decimal.Decimal `json:"orderAmount"`
}

// ifoodOrderEnvelope is the raw record handed to the normalizer. It pairs
// the order details with the latest event code so stored payloads can be
// re-normalized later without polling again.
type ifoodOrderEnvelope struct {
	EventCode string          `json:"eventCode"`
	Order     json.RawMessage `json:"order"`
}
