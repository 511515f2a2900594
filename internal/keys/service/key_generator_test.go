package service

import (
	"crypto/rsa"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	keysDomain "github.com/phivault/phivault/internal/keys/domain"
)

func TestKeyGeneratorService_Generate(t *testing.T) {
	generator := NewKeyGenerator()

	t.Run("basic symmetric is 128 bits", func(t *testing.T) {
		material, alg, bits, err := generator.Generate(keysDomain.LevelBasic, keysDomain.KeyTypeSymmetric)
		require.NoError(t, err)
		assert.Equal(t, keysDomain.AES128GCM, alg)
		assert.Equal(t, 128, bits)
		assert.Len(t, material, 16)
	})

	t.Run("healthcare symmetric is 128 bits", func(t *testing.T) {
		material, alg, bits, err := generator.Generate(keysDomain.LevelHealthcare, keysDomain.KeyTypeSymmetric)
		require.NoError(t, err)
		assert.Equal(t, keysDomain.AES128GCM, alg)
		assert.Equal(t, 128, bits)
		assert.Len(t, material, 16)
	})

	t.Run("critical symmetric is 256 bits", func(t *testing.T) {
		material, alg, bits, err := generator.Generate(keysDomain.LevelCritical, keysDomain.KeyTypeSymmetric)
		require.NoError(t, err)
		assert.Equal(t, keysDomain.AES256GCM, alg)
		assert.Equal(t, 256, bits)
		assert.Len(t, material, 32)
	})

	t.Run("healthcare asymmetric is RSA 2048", func(t *testing.T) {
		material, alg, bits, err := generator.Generate(keysDomain.LevelHealthcare, keysDomain.KeyTypeAsymmetric)
		require.NoError(t, err)
		assert.Equal(t, keysDomain.RSA2048, alg)
		assert.Equal(t, 2048, bits)

		parsed, err := x509.ParsePKCS8PrivateKey(material)
		require.NoError(t, err)
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		require.True(t, ok)
		assert.Equal(t, 2048, rsaKey.N.BitLen())
	})

	t.Run("unknown level is rejected", func(t *testing.T) {
		_, _, _, err := generator.Generate(keysDomain.EncryptionLevel("ultra"), keysDomain.KeyTypeSymmetric)
		assert.ErrorIs(t, err, keysDomain.ErrUnsupportedLevel)
	})

	t.Run("distinct material per call", func(t *testing.T) {
		first, _, _, err := generator.Generate(keysDomain.LevelCritical, keysDomain.KeyTypeSymmetric)
		require.NoError(t, err)
		second, _, _, err := generator.Generate(keysDomain.LevelCritical, keysDomain.KeyTypeSymmetric)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})
}
