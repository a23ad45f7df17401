package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/restohub/backend/internal/domain/integration"
)

// tokenRefreshMargin renews a token shortly before it expires
const tokenRefreshMargin = time.Minute

// IFoodAdapter implements integration.SalesAdapter for the iFood merchant API
type IFoodAdapter struct {
	config     *IFoodConfig
	httpClient *http.Client
	normalizer IFoodNormalizer

	mu             sync.Mutex
	accessToken    string
	tokenExpiresAt time.Time
}

// NewIFoodAdapter creates a new iFood adapter with the given configuration
func NewIFoodAdapter(config *IFoodConfig, httpClient *http.Client) (*IFoodAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &IFoodAdapter{
		config:     config,
		httpClient: httpClient,
	}, nil
}

// Platform returns the platform identifier
func (a *IFoodAdapter) Platform() integration.Platform {
	return integration.PlatformIFood
}

// TestConnection obtains a token and reads the configured merchant
func (a *IFoodAdapter) TestConnection(ctx context.Context) error {
	body, err := a.get(ctx, "/merchant/v1.0/merchants/"+url.PathEscape(a.config.MerchantID), nil)
	if err != nil {
		return err
	}

	var merchant IFoodMerchant
	if err := json.Unmarshal(body, &merchant); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if merchant.ID != a.config.MerchantID {
		return fmt.Errorf("%w: merchant %q not returned", integration.ErrPlatformInvalidResponse, a.config.MerchantID)
	}
	return nil
}

// FetchOrders polls pending order events and loads each order. The polled
// event ids are returned as receipts; events are redelivered until
// AcknowledgeOrders is called with them.
func (a *IFoodAdapter) FetchOrders(ctx context.Context) (*integration.FetchResult, error) {
	headers := map[string]string{"x-polling-merchants": a.config.MerchantID}
	body, err := a.get(ctx, "/order/v1.0/events:polling", headers)
	if err != nil {
		return nil, err
	}

	result := &integration.FetchResult{}
	if len(body) == 0 {
		return result, nil
	}

	var events []IFoodEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if len(events) == 0 {
		return result, nil
	}

	for _, orderID := range orderIDsInEventOrder(events) {
		raw, err := a.get(ctx, "/order/v1.0/orders/"+url.PathEscape(orderID), nil)
		if err != nil {
			return nil, err
		}

		envelope, err := json.Marshal(ifoodOrderEnvelope{
			EventCode: latestEventCode(events, orderID),
			Order:     raw,
		})
		if err != nil {
			return nil, fmt.Errorf("ifood: failed to build order envelope: %w", err)
		}

		order, err := a.normalizer.NormalizeOrder(envelope)
		if err != nil {
			result.Rejected = append(result.Rejected, integration.RejectedRecord{
				ExternalRef: orderID,
				Payload:     envelope,
				Reason:      err.Error(),
			})
			continue
		}
		order.Raw = envelope
		result.Orders = append(result.Orders, *order)
	}

	for _, e := range events {
		result.Receipts = append(result.Receipts, e.ID)
	}
	return result, nil
}

// AcknowledgeOrders implements integration.OrderAcknowledger
func (a *IFoodAdapter) AcknowledgeOrders(ctx context.Context, receipts []string) error {
	if len(receipts) == 0 {
		return nil
	}
	return a.acknowledge(ctx, receipts)
}

// NormalizeOrder implements integration.OrderNormalizer
func (a *IFoodAdapter) NormalizeOrder(raw json.RawMessage) (*integration.Order, error) {
	return a.normalizer.NormalizeOrder(raw)
}

// CurrentToken implements integration.TokenSource
func (a *IFoodAdapter) CurrentToken() (integration.Token, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accessToken == "" {
		return integration.Token{}, false
	}
	expiresAt := a.tokenExpiresAt
	return integration.Token{AccessToken: a.accessToken, ExpiresAt: &expiresAt}, true
}

func (a *IFoodAdapter) acknowledge(ctx context.Context, eventIDs []string) error {
	acks := make([]IFoodAcknowledgment, 0, len(eventIDs))
	for _, id := range eventIDs {
		acks = append(acks, IFoodAcknowledgment{ID: id})
	}
	payload, err := json.Marshal(acks)
	if err != nil {
		return fmt.Errorf("ifood: failed to encode acknowledgment: %w", err)
	}

	token, err := a.token(ctx)
	if err != nil {
		return err
	}
	req, err := newRequest(ctx, http.MethodPost, a.config.APIBaseURL+"/order/v1.0/events/acknowledgment", string(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	_, err = doRequest(a.httpClient, req, integration.PlatformIFood)
	return err
}

// get performs an authenticated GET against the merchant API
func (a *IFoodAdapter) get(ctx context.Context, path string, headers map[string]string) ([]byte, error) {
	token, err := a.token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := newRequest(ctx, http.MethodGet, a.config.APIBaseURL+path, "")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return doRequest(a.httpClient, req, integration.PlatformIFood)
}

// token returns a valid access token, requesting a new one when needed
func (a *IFoodAdapter) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accessToken != "" && time.Now().Add(tokenRefreshMargin).Before(a.tokenExpiresAt) {
		return a.accessToken, nil
	}

	form := url.Values{}
	form.Set("grantType", "client_credentials")
	form.Set("clientId", a.config.ClientID)
	form.Set("clientSecret", a.config.ClientSecret)

	req, err := newRequest(ctx, http.MethodPost, a.config.APIBaseURL+"/authentication/v1.0/oauth/token", form.Encode())
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := doRequest(a.httpClient, req, integration.PlatformIFood)
	if err != nil {
		return "", err
	}

	var resp IFoodTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", integration.ErrPlatformAuthFailed)
	}

	a.accessToken = resp.AccessToken
	a.tokenExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	return a.accessToken, nil
}

// orderIDsInEventOrder returns distinct order IDs in the order events arrived
func orderIDsInEventOrder(events []IFoodEvent) []string {
	seen := make(map[string]bool, len(events))
	ids := make([]string, 0, len(events))
	for _, e := range events {
		if e.OrderID == "" || seen[e.OrderID] {
			continue
		}
		seen[e.OrderID] = true
		ids = append(ids, e.OrderID)
	}
	return ids
}

// latestEventCode returns the most recent status-bearing event code of an order
func latestEventCode(events []IFoodEvent, orderID string) string {
	var matching []IFoodEvent
	for _, e := range events {
		if e.OrderID == orderID {
			if _, ok := ifoodStatusByCode[e.Code]; ok {
				matching = append(matching, e)
			}
		}
	}
	if len(matching) == 0 {
		return ""
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].CreatedAt.Before(matching[j].CreatedAt)
	})
	return matching[len(matching)-1].Code
}

// ---------------------------------------------------------------------------
// IFoodNormalizer
// ---------------------------------------------------------------------------

var ifoodStatusByCode = map[string]integration.OrderStatus{
	"PLC": integration.OrderStatusPlaced,
	"CFM": integration.OrderStatusConfirmed,
	"DSP": integration.OrderStatusDispatched,
	"CON": integration.OrderStatusConcluded,
	"CAN": integration.OrderStatusCancelled,
}

// IFoodNormalizer converts iFood order envelopes into normalized orders
type IFoodNormalizer struct{}

// NormalizeOrder implements integration.OrderNormalizer
func (IFoodNormalizer) NormalizeOrder(raw json.RawMessage) (*integration.Order, error) {
	var envelope ifoodOrderEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrOrderNormalization, err)
	}
	if len(envelope.Order) == 0 {
		return nil, fmt.Errorf("%w: missing order body", integration.ErrOrderNormalization)
	}

	var src IFoodOrder
	if err := json.Unmarshal(envelope.Order, &src); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrOrderNormalization, err)
	}
	if src.Total == nil {
		return nil, fmt.Errorf("%w: order %s has no totals", integration.ErrOrderNormalization, src.ID)
	}

	status := integration.OrderStatusPlaced
	if envelope.EventCode != "" {
		mapped, ok := ifoodStatusByCode[envelope.EventCode]
		if !ok {
			return nil, fmt.Errorf("%w: unknown event code %q", integration.ErrOrderNormalization, envelope.EventCode)
		}
		status = mapped
	}

	order := &integration.Order{
		ExternalID:  src.ID,
		DisplayID:   src.DisplayID,
		Platform:    integration.PlatformIFood,
		Status:      status,
		Subtotal:    src.Total.SubTotal,
		DeliveryFee: src.Total.DeliveryFee,
		Discount:    src.Total.Benefits,
		Total:       src.Total.OrderAmount,
		Currency:    "BRL",
		PlacedAt:    src.CreatedAt,
		Items:       make([]integration.OrderItem, 0, len(src.Items)),
	}
	if src.Customer != nil {
		order.CustomerName = src.Customer.Name
	}
	for _, item := range src.Items {
		externalID := item.ExternalCode
		if externalID == "" {
			externalID = item.ID
		}
		order.Items = append(order.Items, integration.OrderItem{
			ExternalID: externalID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
			Notes:      item.Observations,
		})
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}
	return order, nil
}

// Compile-time interface checks
var (
	_ integration.SalesAdapter    = (*IFoodAdapter)(nil)
	_ integration.TokenSource     = (*IFoodAdapter)(nil)
	_ integration.OrderNormalizer = IFoodNormalizer{}
)
