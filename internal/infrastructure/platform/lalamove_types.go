package platform

import "time"

// lalamoveEnvelope wraps every Lalamove request and response body
type lalamoveEnvelope[T any] struct {
	Data T `json:"data"`
}

// LalamoveCoordinates are sent as strings by the API
type LalamoveCoordinates struct {
	Lat string `json:"lat"`
	Lng string `json:"lng"`
}

// LalamoveStop is one pickup or drop-off point
type LalamoveStop struct {
	StopID      string              `json:"stopId,omitempty"`
	Coordinates LalamoveCoordinates `json:"coordinates"`
	Address     string              `json:"address"`
}

// LalamoveItem describes the goods being delivered
type LalamoveItem struct {
	Quantity    string   `json:"quantity,omitempty"`
	Weight      string   `json:"weight,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Description string   `json:"description,omitempty"`
}

// LalamoveQuotationRequest is the body of POST /v3/quotations
type LalamoveQuotationRequest struct {
	ScheduleAt  string         `json:"scheduleAt,omitempty"`
	ServiceType string         `json:"serviceType"`
	Language    string         `json:"language"`
	Stops       []LalamoveStop `json:"stops"`
	Item        *LalamoveItem  `json:"item,omitempty"`
}

// LalamovePriceBreakdown is the price block of a quotation
type LalamovePriceBreakdown struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

// LalamoveMeasure is a value/unit pair
type LalamoveMeasure struct {
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// LalamoveQuotation is returned by the quotation endpoints
type LalamoveQuotation struct {
	QuotationID    string                 `json:"quotationId"`
	ScheduleAt     *time.Time             `json:"scheduleAt"`
	ExpiresAt      *time.Time             `json:"expiresAt"`
	ServiceType    string                 `json:"serviceType"`
	PriceBreakdown LalamovePriceBreakdown `json:"priceBreakdown"`
	Distance       LalamoveMeasure        `json:"distance"`
	Stops          []LalamoveStop         `json:"stops"`
}

// LalamoveContact is a sender or recipient bound to a stop
type LalamoveContact struct {
	StopID  string `json:"stopId"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Remarks string `json:"remarks,omitempty"`
}

// LalamoveOrderRequest is the body of POST /v3/orders
type LalamoveOrderRequest struct {
	QuotationID string            `json:"quotationId"`
	Sender      LalamoveContact   `json:"sender"`
	Recipients  []LalamoveContact `json:"recipients"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// LalamoveOrder is returned by the order endpoints
type LalamoveOrder struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	DriverID  string `json:"driverId"`
	ShareLink string `json:"shareLink"`
}

// LalamoveDriver is returned by the driver details endpoint
type LalamoveDriver struct {
	DriverID    string               `json:"driverId"`
	Name        string               `json:"name"`
	Phone       string               `json:"phone"`
	Coordinates *LalamoveCoordinates `json:"coordinates"`
	UpdatedAt   *time.Time           `json:"updatedAt"`
}
