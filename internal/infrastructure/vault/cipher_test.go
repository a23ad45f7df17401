package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMasterKey = "0123456789abcdef0123456789abcdef"

func TestNewCipher(t *testing.T) {
	_, err := NewCipher("short")
	assert.ErrorIs(t, err, ErrMasterKeyTooShort)

	c, err := NewCipher(testMasterKey)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestCipher_SealOpen(t *testing.T) {
	c, err := NewCipher(testMasterKey)
	require.NoError(t, err)

	t.Run("opens what it sealed", func(t *testing.T) {
		sealed, err := c.Seal([]byte(`{"client_secret":"s3cr3t"}`))
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
		assert.NotContains(t, sealed, "s3cr3t")

		plain, err := c.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, `{"client_secret":"s3cr3t"}`, string(plain))
	})

	t.Run("nonce differs per seal", func(t *testing.T) {
		a, err := c.Seal([]byte("same"))
		require.NoError(t, err)
		b, err := c.Seal([]byte("same"))
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("empty round trips to empty", func(t *testing.T) {
		sealed, err := c.Seal(nil)
		require.NoError(t, err)
		assert.Empty(t, sealed)

		plain, err := c.Open("")
		require.NoError(t, err)
		assert.Nil(t, plain)
	})
}

func TestCipher_OpenRejects(t *testing.T) {
	c, err := NewCipher(testMasterKey)
	require.NoError(t, err)
	other, err := NewCipher(strings.Repeat("z", 40))
	require.NoError(t, err)

	sealed, err := c.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrDecryptFailed)

	_, err = c.Open("plaintext")
	assert.ErrorIs(t, err, ErrMalformedSecret)

	_, err = c.Open(sealedPrefix + "!!!")
	assert.ErrorIs(t, err, ErrMalformedSecret)

	_, err = c.Open(sealedPrefix + "AAAA")
	assert.ErrorIs(t, err, ErrMalformedSecret)

	pos := len(sealedPrefix) + 10
	replacement := "A"
	if sealed[pos] == 'A' {
		replacement = "B"
	}
	tampered := sealed[:pos] + replacement + sealed[pos+1:]
	_, err = c.Open(tampered)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}
