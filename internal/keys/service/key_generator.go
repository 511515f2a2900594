package service

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	keysDomain "github.com/phivault/phivault/internal/keys/domain"
)

// KeyGeneratorService implements KeyGenerator. Symmetric material comes
// straight from crypto/rand; asymmetric material is an RSA private key in
// PKCS#8 DER form. RSA keys are generated and stored but never used by the
// encryption service itself.
type KeyGeneratorService struct{}

// NewKeyGenerator creates a new KeyGeneratorService.
func NewKeyGenerator() *KeyGeneratorService {
	return &KeyGeneratorService{}
}

// Generate returns fresh raw key material for the given level and type,
// together with the algorithm and size selected for it.
func (g *KeyGeneratorService) Generate(
	level keysDomain.EncryptionLevel,
	keyType keysDomain.KeyType,
) ([]byte, keysDomain.Algorithm, int, error) {
	alg, bits, err := keysDomain.SelectAlgorithm(level, keyType)
	if err != nil {
		return nil, "", 0, err
	}

	switch keyType {
	case keysDomain.KeyTypeSymmetric:
		material := make([]byte, bits/8)
		if _, err := rand.Read(material); err != nil {
			return nil, "", 0, fmt.Errorf("failed to generate key material: %w", err)
		}
		return material, alg, bits, nil

	case keysDomain.KeyTypeAsymmetric:
		privateKey, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, "", 0, fmt.Errorf("failed to generate RSA key: %w", err)
		}
		material, err := x509.MarshalPKCS8PrivateKey(privateKey)
		if err != nil {
			return nil, "", 0, fmt.Errorf("failed to marshal PKCS8 key: %w", err)
		}
		return material, alg, bits, nil

	default:
		return nil, "", 0, keysDomain.ErrUnsupportedAlgorithm
	}
}
