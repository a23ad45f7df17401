package platform

import (
	"errors"

	"github.com/restohub/backend/internal/domain/integration"
)

// IFoodConfig holds configuration for the iFood merchant API
type IFoodConfig struct {
	// ClientID is the application client ID from the iFood developer portal
	ClientID string
	// ClientSecret is the application client secret
	ClientSecret string
	// MerchantID identifies the restaurant on iFood
	MerchantID string
	// APIBaseURL is the base URL for the merchant API
	APIBaseURL string
}

// IFoodProductionAPIURL is the production merchant API endpoint
const IFoodProductionAPIURL = "https://merchant-api.ifood.com.br"

// Errors for iFood configuration
var (
	ErrIFoodConfigMissingClientID     = errors.New("ifood: client ID is required")
	ErrIFoodConfigMissingClientSecret = errors.New("ifood: client secret is required")
	ErrIFoodConfigMissingMerchantID   = errors.New("ifood: merchant ID is required")
)

// NewIFoodConfig builds a config from an integration credential bundle
func NewIFoodConfig(creds integration.Credentials, baseURL string) *IFoodConfig {
	return &IFoodConfig{
		ClientID:     creds.Get("client_id"),
		ClientSecret: creds.Get("client_secret"),
		MerchantID:   creds.Get("merchant_id"),
		APIBaseURL:   baseURL,
	}
}

// Validate validates the configuration and applies defaults
func (c *IFoodConfig) Validate() error {
	if c.ClientID == "" {
		return ErrIFoodConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrIFoodConfigMissingClientSecret
	}
	if c.MerchantID == "" {
		return ErrIFoodConfigMissingMerchantID
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = IFoodProductionAPIURL
	}
	return nil
}
