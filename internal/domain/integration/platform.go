package integration

import "sort"

// ---------------------------------------------------------------------------
// Platform represents a third-party platform a tenant can connect to
// ---------------------------------------------------------------------------

// Platform identifies an external sales or logistics service
type Platform string

const (
	// PlatformIFood represents the iFood order-taking app
	PlatformIFood Platform = "IFOOD"
	// PlatformRappi represents the Rappi order-taking app
	PlatformRappi Platform = "RAPPI"
	// PlatformUberEats represents the Uber Eats order-taking app
	PlatformUberEats Platform = "UBER_EATS"
	// PlatformLalamove represents the Lalamove delivery dispatch service
	PlatformLalamove Platform = "LALAMOVE"
	// PlatformLoggi represents the Loggi delivery dispatch service
	PlatformLoggi Platform = "LOGGI"
)

// IsValid returns true if the platform is part of the catalog
func (p Platform) IsValid() bool {
	_, ok := catalog[p]
	return ok
}

// String returns the string representation of Platform
func (p Platform) String() string {
	return string(p)
}

// PlatformType is the capability class of a platform
type PlatformType string

const (
	// PlatformTypeSales platforms deliver orders to the restaurant
	PlatformTypeSales PlatformType = "SALES"
	// PlatformTypeLogistics platforms dispatch deliveries for the restaurant
	PlatformTypeLogistics PlatformType = "LOGISTICS"
)

// IsValid returns true if the platform type is valid
func (t PlatformType) IsValid() bool {
	return t == PlatformTypeSales || t == PlatformTypeLogistics
}

// String returns the string representation of PlatformType
func (t PlatformType) String() string {
	return string(t)
}

// ---------------------------------------------------------------------------
// Platform catalog
// ---------------------------------------------------------------------------

// PlatformSpec describes a catalog entry
type PlatformSpec struct {
	Platform                 Platform
	Type                     PlatformType
	DisplayName              string
	RequiredCredentialFields []string
}

// catalog is read-only after package initialization.
var catalog = map[Platform]PlatformSpec{
	PlatformIFood: {
		Platform:                 PlatformIFood,
		Type:                     PlatformTypeSales,
		DisplayName:              "iFood",
		RequiredCredentialFields: []string{"client_id", "client_secret", "merchant_id"},
	},
	PlatformRappi: {
		Platform:                 PlatformRappi,
		Type:                     PlatformTypeSales,
		DisplayName:              "Rappi",
		RequiredCredentialFields: []string{"api_key", "store_id"},
	},
	PlatformUberEats: {
		Platform:                 PlatformUberEats,
		Type:                     PlatformTypeSales,
		DisplayName:              "Uber Eats",
		RequiredCredentialFields: []string{"client_id", "client_secret", "store_id"},
	},
	PlatformLalamove: {
		Platform:                 PlatformLalamove,
		Type:                     PlatformTypeLogistics,
		DisplayName:              "Lalamove",
		RequiredCredentialFields: []string{"api_key", "api_secret", "market"},
	},
	PlatformLoggi: {
		Platform:                 PlatformLoggi,
		Type:                     PlatformTypeLogistics,
		DisplayName:              "Loggi",
		RequiredCredentialFields: []string{"api_key", "shop_id"},
	},
}

// LookupPlatform returns the catalog entry for a platform
func LookupPlatform(p Platform) (PlatformSpec, bool) {
	spec, ok := catalog[p]
	if !ok {
		return PlatformSpec{}, false
	}
	spec.RequiredCredentialFields = append([]string(nil), spec.RequiredCredentialFields...)
	return spec, true
}

// Catalog returns every catalog entry ordered by platform identifier
func Catalog() []PlatformSpec {
	specs := make([]PlatformSpec, 0, len(catalog))
	for p := range catalog {
		spec, _ := LookupPlatform(p)
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool {
		return specs[i].Platform < specs[j].Platform
	})
	return specs
}

// MissingCredentials returns the required fields that are absent or blank
func (s PlatformSpec) MissingCredentials(creds Credentials) []string {
	var missing []string
	for _, field := range s.RequiredCredentialFields {
		if creds.Get(field) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// ValidateCredentials returns a CredentialError when a required field is missing
func (s PlatformSpec) ValidateCredentials(creds Credentials) error {
	if missing := s.MissingCredentials(creds); len(missing) > 0 {
		return NewCredentialError(s.Platform, missing)
	}
	return nil
}
