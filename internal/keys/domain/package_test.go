package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptedPackage_RoundTrip(t *testing.T) {
	t.Run("critical package with nonce and tag", func(t *testing.T) {
		original := EncryptedPackage{
			KeyID:       uuid.Must(uuid.NewV7()),
			Level:       LevelCritical,
			Algorithm:   AES256GCM,
			Ciphertext:  []byte("ciphertext bytes"),
			Nonce:       []byte("123456789012"),
			Tag:         []byte("1234567890123456"),
			EncryptedAt: time.Now().UTC(),
		}

		parsed, err := ParsePackage(original.String())
		require.NoError(t, err)
		assert.Equal(t, original.KeyID, parsed.KeyID)
		assert.Equal(t, original.Level, parsed.Level)
		assert.Equal(t, original.Algorithm, parsed.Algorithm)
		assert.Equal(t, original.Ciphertext, parsed.Ciphertext)
		assert.Equal(t, original.Nonce, parsed.Nonce)
		assert.Equal(t, original.Tag, parsed.Tag)
	})

	t.Run("healthcare package without explicit nonce", func(t *testing.T) {
		original := EncryptedPackage{
			KeyID:      uuid.Must(uuid.NewV7()),
			Level:      LevelHealthcare,
			Algorithm:  AES128GCM,
			Ciphertext: []byte("v1 token bytes"),
		}

		parsed, err := ParsePackage(original.String())
		require.NoError(t, err)
		assert.Equal(t, original.Ciphertext, parsed.Ciphertext)
		assert.Nil(t, parsed.Nonce)
		assert.Nil(t, parsed.Tag)
	})
}

func TestParsePackage_Errors(t *testing.T) {
	validID := uuid.Must(uuid.NewV7()).String()

	tests := []struct {
		name  string
		input string
	}{
		{name: "wrong segment count", input: "a:b:c"},
		{name: "bad key id", input: "not-a-uuid:critical:aes-256-gcm:YQ==:YQ==:YQ=="},
		{name: "bad level", input: validID + ":ultra:aes-256-gcm:YQ==:YQ==:YQ=="},
		{name: "bad ciphertext base64", input: validID + ":critical:aes-256-gcm:!!:YQ==:YQ=="},
		{name: "bad nonce base64", input: validID + ":critical:aes-256-gcm:YQ==:!!:YQ=="},
		{name: "bad tag base64", input: validID + ":critical:aes-256-gcm:YQ==:YQ==:!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePackage(tt.input)
			assert.ErrorIs(t, err, ErrInvalidPackageFormat)
		})
	}
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3}
	Zero(b)
	assert.Equal(t, []byte{0, 0, 0}, b)
	Zero(nil)
}
