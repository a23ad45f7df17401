package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restohub/backend/internal/domain/shared"
)

func TestPlatform_IsValid(t *testing.T) {
	tests := []struct {
		platform Platform
		expected bool
	}{
		{PlatformIFood, true},
		{PlatformRappi, true},
		{PlatformUberEats, true},
		{PlatformLalamove, true},
		{PlatformLoggi, true},
		{Platform("TAOBAO"), false},
		{Platform(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.platform), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.platform.IsValid())
		})
	}
}

func TestCatalog(t *testing.T) {
	specs := Catalog()
	require.Len(t, specs, 5)

	for i := 1; i < len(specs); i++ {
		assert.Less(t, specs[i-1].Platform, specs[i].Platform)
	}
	for _, spec := range specs {
		assert.True(t, spec.Type.IsValid(), spec.Platform)
		assert.NotEmpty(t, spec.DisplayName)
		assert.NotEmpty(t, spec.RequiredCredentialFields)
	}
}

func TestLookupPlatform(t *testing.T) {
	spec, ok := LookupPlatform(PlatformIFood)
	require.True(t, ok)
	assert.Equal(t, PlatformTypeSales, spec.Type)
	assert.Equal(t, "iFood", spec.DisplayName)

	spec.RequiredCredentialFields[0] = "tampered"
	again, _ := LookupPlatform(PlatformIFood)
	assert.Equal(t, "client_id", again.RequiredCredentialFields[0])

	_, ok = LookupPlatform(Platform("NOPE"))
	assert.False(t, ok)
}

func TestPlatformSpec_ValidateCredentials(t *testing.T) {
	spec, _ := LookupPlatform(PlatformLalamove)

	missing := spec.MissingCredentials(Credentials{"api_key": "k", "api_secret": "  "})
	assert.Equal(t, []string{"api_secret", "market"}, missing)

	err := spec.ValidateCredentials(Credentials{"api_key": "k"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrCredential)
	assert.Contains(t, err.Error(), "market")

	assert.NoError(t, spec.ValidateCredentials(Credentials{"api_key": "k", "api_secret": "s", "market": "BR"}))
}
