package platform

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"github.com/restohub/backend/internal/domain/integration"
)

// LalamoveConfig holds configuration for the Lalamove v3 API
type LalamoveConfig struct {
	// APIKey is the public key issued by Lalamove
	APIKey string
	// APISecret signs every request
	APISecret string
	// Market is the Lalamove market code (e.g. "BR")
	Market string
	// ServiceType is the vehicle class requested for quotes
	ServiceType string
	// Language is the locale sent with quotations
	Language string
	// APIBaseURL is the base URL for the API (production or sandbox)
	APIBaseURL string
}

const (
	// LalamoveProductionAPIURL is the production API endpoint
	LalamoveProductionAPIURL = "https://rest.lalamove.com"
	// LalamoveSandboxAPIURL is the sandbox API endpoint
	LalamoveSandboxAPIURL = "https://rest.sandbox.lalamove.com"
)

// Errors for Lalamove configuration
var (
	ErrLalamoveConfigMissingAPIKey    = errors.New("lalamove: api key is required")
	ErrLalamoveConfigMissingAPISecret = errors.New("lalamove: api secret is required")
	ErrLalamoveConfigMissingMarket    = errors.New("lalamove: market is required")
)

// NewLalamoveConfig builds a config from an integration credential bundle
func NewLalamoveConfig(creds integration.Credentials, baseURL string) *LalamoveConfig {
	return &LalamoveConfig{
		APIKey:      creds.Get("api_key"),
		APISecret:   creds.Get("api_secret"),
		Market:      strings.ToUpper(creds.Get("market")),
		ServiceType: creds.Get("service_type"),
		APIBaseURL:  baseURL,
	}
}

// Validate validates the configuration and applies defaults
func (c *LalamoveConfig) Validate() error {
	if c.APIKey == "" {
		return ErrLalamoveConfigMissingAPIKey
	}
	if c.APISecret == "" {
		return ErrLalamoveConfigMissingAPISecret
	}
	if c.Market == "" {
		return ErrLalamoveConfigMissingMarket
	}
	if c.ServiceType == "" {
		c.ServiceType = "MOTORCYCLE"
	}
	if c.Language == "" {
		c.Language = "pt_BR"
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = LalamoveProductionAPIURL
	}
	return nil
}

// Sign computes the request signature:
// HMAC-SHA256(secret, "<timestamp>\r\n<METHOD>\r\n<path>\r\n\r\n<body>") in lowercase hex
func (c *LalamoveConfig) Sign(timestampMillis int64, method, path, body string) string {
	var builder strings.Builder
	builder.WriteString(strconv.FormatInt(timestampMillis, 10))
	builder.WriteString("\r\n")
	builder.WriteString(method)
	builder.WriteString("\r\n")
	builder.WriteString(path)
	builder.WriteString("\r\n\r\n")
	builder.WriteString(body)

	h := hmac.New(sha256.New, []byte(c.APISecret))
	h.Write([]byte(builder.String()))
	return hex.EncodeToString(h.Sum(nil))
}

// AuthorizationHeader returns the value of the Authorization header
func (c *LalamoveConfig) AuthorizationHeader(timestampMillis int64, method, path, body string) string {
	return "hmac " + c.APIKey + ":" + strconv.FormatInt(timestampMillis, 10) + ":" + c.Sign(timestampMillis, method, path, body)
}
