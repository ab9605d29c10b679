package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasscodeVerifier(t *testing.T) {
	t.Run("plain passcode is hashed at startup", func(t *testing.T) {
		v, err := NewPasscodeVerifier("3877", "")
		require.NoError(t, err)

		assert.NoError(t, v.Verify("3877"))
		assert.ErrorIs(t, v.Verify("1234"), ErrInvalidPasscode)
		assert.ErrorIs(t, v.Verify(""), ErrInvalidPasscode)
	})

	t.Run("configured hash wins over plain", func(t *testing.T) {
		hash, err := HashPasscode("9999")
		require.NoError(t, err)

		v, err := NewPasscodeVerifier("3877", hash)
		require.NoError(t, err)
		assert.NoError(t, v.Verify("9999"))
		assert.ErrorIs(t, v.Verify("3877"), ErrInvalidPasscode)
	})

	t.Run("malformed hash", func(t *testing.T) {
		_, err := NewPasscodeVerifier("", "not-a-bcrypt-hash")
		assert.Error(t, err)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := NewPasscodeVerifier("", "")
		assert.Error(t, err)
	})
}
