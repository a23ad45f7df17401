package platform

import (
	"fmt"
	"net/http"
	"time"

	"github.com/restohub/backend/internal/domain/integration"
)

// FactoryConfig holds the endpoints and transport settings of every bundled adapter
type FactoryConfig struct {
	IFoodBaseURL    string
	LalamoveBaseURL string
	// RequestTimeout bounds a single HTTP request. Whole adapter calls are
	// additionally bounded by the caller's context.
	RequestTimeout time.Duration
}

// Factory implements integration.AdapterFactory for the bundled adapters
type Factory struct {
	config     FactoryConfig
	httpClient *http.Client
}

// NewFactory creates an adapter factory sharing one HTTP client
func NewFactory(config FactoryConfig) *Factory {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	return &Factory{
		config:     config,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
	}
}

// NewAdapter constructs the adapter for the descriptor's platform
func (f *Factory) NewAdapter(desc integration.Descriptor) (integration.Adapter, error) {
	switch desc.Platform {
	case integration.PlatformIFood:
		adapter, err := NewIFoodAdapter(NewIFoodConfig(desc.Credentials, f.config.IFoodBaseURL), f.httpClient)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	case integration.PlatformLalamove:
		adapter, err := NewLalamoveAdapter(NewLalamoveConfig(desc.Credentials, f.config.LalamoveBaseURL), f.httpClient)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	default:
		return nil, fmt.Errorf("%w: %s", integration.ErrAdapterNotAvailable, desc.Platform)
	}
}

// Supports reports whether NewAdapter can build an adapter for platform
func (f *Factory) Supports(platform integration.Platform) bool {
	switch platform {
	case integration.PlatformIFood, integration.PlatformLalamove:
		return true
	default:
		return false
	}
}

// Normalizer returns the order normalizer for a sales platform
func (f *Factory) Normalizer(platform integration.Platform) (integration.OrderNormalizer, bool) {
	switch platform {
	case integration.PlatformIFood:
		return IFoodNormalizer{}, true
	default:
		return nil, false
	}
}

var _ integration.AdapterFactory = (*Factory)(nil)
