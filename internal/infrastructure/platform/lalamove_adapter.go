package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/restohub/backend/internal/domain/integration"
)

// LalamoveAdapter implements integration.LogisticsAdapter for the Lalamove v3 API
type LalamoveAdapter struct {
	config     *LalamoveConfig
	httpClient *http.Client
	now        func() time.Time
}

// NewLalamoveAdapter creates a new Lalamove adapter with the given configuration
func NewLalamoveAdapter(config *LalamoveConfig, httpClient *http.Client) (*LalamoveAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &LalamoveAdapter{
		config:     config,
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

// Platform returns the platform identifier
func (a *LalamoveAdapter) Platform() integration.Platform {
	return integration.PlatformLalamove
}

// TestConnection lists the market's cities, which requires a valid signature
func (a *LalamoveAdapter) TestConnection(ctx context.Context) error {
	_, err := a.do(ctx, http.MethodGet, "/v3/cities", nil)
	return err
}

// GetQuote requests a quotation between the pickup and drop-off addresses
func (a *LalamoveAdapter) GetQuote(ctx context.Context, req *integration.DeliveryQuoteRequest) (*integration.DeliveryQuote, error) {
	pickup, err := toLalamoveStop(req.Pickup)
	if err != nil {
		return nil, err
	}
	dropoff, err := toLalamoveStop(req.Dropoff)
	if err != nil {
		return nil, err
	}

	body := LalamoveQuotationRequest{
		ServiceType: a.config.ServiceType,
		Language:    a.config.Language,
		Stops:       []LalamoveStop{pickup, dropoff},
		Item:        toLalamoveItem(req.Packages),
	}
	if req.ScheduledAt != nil {
		body.ScheduleAt = req.ScheduledAt.UTC().Format(time.RFC3339)
	}

	raw, err := a.do(ctx, http.MethodPost, "/v3/quotations", body)
	if err != nil {
		return nil, err
	}
	quotation, err := decodeLalamove[LalamoveQuotation](raw)
	if err != nil {
		return nil, err
	}

	quote := &integration.DeliveryQuote{
		QuoteID:   quotation.QuotationID,
		Price:     ParseDecimal(quotation.PriceBreakdown.Total),
		Currency:  quotation.PriceBreakdown.Currency,
		ExpiresAt: quotation.ExpiresAt,
	}
	if quotation.Distance.Unit == "m" {
		quote.DistanceMeters, _ = strconv.Atoi(quotation.Distance.Value)
	}
	return quote, nil
}

// RequestDelivery places an order for a previously quoted delivery
func (a *LalamoveAdapter) RequestDelivery(ctx context.Context, req *integration.DeliveryRequest) (string, error) {
	raw, err := a.do(ctx, http.MethodGet, "/v3/quotations/"+url.PathEscape(req.QuoteID), nil)
	if err != nil {
		return "", err
	}
	quotation, err := decodeLalamove[LalamoveQuotation](raw)
	if err != nil {
		return "", err
	}
	if len(quotation.Stops) < 2 {
		return "", fmt.Errorf("%w: quotation %s has %d stops", integration.ErrPlatformInvalidResponse, req.QuoteID, len(quotation.Stops))
	}

	order := LalamoveOrderRequest{
		QuotationID: quotation.QuotationID,
		Sender: LalamoveContact{
			StopID: quotation.Stops[0].StopID,
			Name:   req.Sender.Name,
			Phone:  req.Sender.Phone,
		},
		Recipients: []LalamoveContact{{
			StopID: quotation.Stops[len(quotation.Stops)-1].StopID,
			Name:   req.Recipient.Name,
			Phone:  req.Recipient.Phone,
		}},
	}
	if req.Reference != "" {
		order.Metadata = map[string]string{"reference": req.Reference}
	}

	raw, err = a.do(ctx, http.MethodPost, "/v3/orders", order)
	if err != nil {
		return "", err
	}
	placed, err := decodeLalamove[LalamoveOrder](raw)
	if err != nil {
		return "", err
	}
	if placed.OrderID == "" {
		return "", fmt.Errorf("%w: missing order id", integration.ErrPlatformInvalidResponse)
	}
	return placed.OrderID, nil
}

// GetTracking returns the order status and, once assigned, the driver position
func (a *LalamoveAdapter) GetTracking(ctx context.Context, deliveryID string) (*integration.DeliveryTracking, error) {
	raw, err := a.do(ctx, http.MethodGet, "/v3/orders/"+url.PathEscape(deliveryID), nil)
	if err != nil {
		return nil, err
	}
	order, err := decodeLalamove[LalamoveOrder](raw)
	if err != nil {
		return nil, err
	}

	tracking := &integration.DeliveryTracking{
		DeliveryID:  order.OrderID,
		Status:      mapLalamoveStatus(order.Status),
		StatusCode:  order.Status,
		TrackingURL: order.ShareLink,
		UpdatedAt:   a.now(),
	}
	if order.DriverID == "" {
		return tracking, nil
	}

	raw, err = a.do(ctx, http.MethodGet,
		"/v3/orders/"+url.PathEscape(deliveryID)+"/drivers/"+url.PathEscape(order.DriverID), nil)
	if err != nil {
		// Driver details disappear once an order is completed.
		if errors.Is(err, integration.ErrPlatformRequestFailed) {
			return tracking, nil
		}
		return nil, err
	}
	driver, err := decodeLalamove[LalamoveDriver](raw)
	if err != nil {
		return nil, err
	}
	tracking.DriverName = driver.Name
	tracking.DriverPhone = driver.Phone
	if driver.Coordinates != nil {
		if lat, err := strconv.ParseFloat(driver.Coordinates.Lat, 64); err == nil {
			tracking.Latitude = &lat
		}
		if lng, err := strconv.ParseFloat(driver.Coordinates.Lng, 64); err == nil {
			tracking.Longitude = &lng
		}
	}
	if driver.UpdatedAt != nil {
		tracking.UpdatedAt = *driver.UpdatedAt
	}
	return tracking, nil
}

// do sends a signed request. payload, when not nil, is wrapped in the data envelope.
func (a *LalamoveAdapter) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	body := ""
	if payload != nil {
		encoded, err := json.Marshal(lalamoveEnvelope[any]{Data: payload})
		if err != nil {
			return nil, fmt.Errorf("lalamove: failed to encode request: %w", err)
		}
		body = string(encoded)
	}

	req, err := newRequest(ctx, method, a.config.APIBaseURL+path, body)
	if err != nil {
		return nil, err
	}
	timestamp := a.now().UnixMilli()
	req.Header.Set("Authorization", a.config.AuthorizationHeader(timestamp, method, path, body))
	req.Header.Set("Market", a.config.Market)
	req.Header.Set("Request-ID", uuid.NewString())
	req.Header.Set("Accept", "application/json")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return doRequest(a.httpClient, req, integration.PlatformLalamove)
}

func decodeLalamove[T any](raw []byte) (*T, error) {
	var envelope lalamoveEnvelope[T]
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	return &envelope.Data, nil
}

func toLalamoveStop(addr integration.Address) (LalamoveStop, error) {
	if addr.Latitude == nil || addr.Longitude == nil {
		return LalamoveStop{}, integration.NewValidationError("lalamove requires coordinates for every stop")
	}
	return LalamoveStop{
		Coordinates: LalamoveCoordinates{
			Lat: strconv.FormatFloat(*addr.Latitude, 'f', -1, 64),
			Lng: strconv.FormatFloat(*addr.Longitude, 'f', -1, 64),
		},
		Address: addr.Line(),
	}, nil
}

func toLalamoveItem(packages []integration.Package) *LalamoveItem {
	if len(packages) == 0 {
		return nil
	}
	quantity := 0
	weight := decimal.Zero
	description := ""
	for _, p := range packages {
		count := p.Quantity
		if count <= 0 {
			count = 1
		}
		quantity += count
		weight = weight.Add(p.WeightKg.Mul(decimal.NewFromInt(int64(count))))
		if description == "" {
			description = p.Description
		}
	}
	return &LalamoveItem{
		Quantity:    strconv.Itoa(quantity),
		Weight:      weight.String(),
		Categories:  []string{"FOOD_DELIVERY"},
		Description: description,
	}
}

func mapLalamoveStatus(status string) integration.TrackingStatus {
	switch status {
	case "ASSIGNING_DRIVER":
		return integration.TrackingStatusPending
	case "ON_GOING":
		return integration.TrackingStatusAssigned
	case "PICKED_UP":
		return integration.TrackingStatusPickedUp
	case "COMPLETED":
		return integration.TrackingStatusDelivered
	case "CANCELED":
		return integration.TrackingStatusCancelled
	case "REJECTED", "EXPIRED":
		return integration.TrackingStatusFailed
	default:
		return integration.TrackingStatusInTransit
	}
}

var _ integration.LogisticsAdapter = (*LalamoveAdapter)(nil)
