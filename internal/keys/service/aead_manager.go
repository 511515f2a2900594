package service

import (
	keysDomain "github.com/phivault/phivault/internal/keys/domain"
)

// AEADManagerService implements the AEADManager interface for creating AEAD
// cipher instances.
type AEADManagerService struct{}

// NewAEADManager creates a new AEADManagerService.
func NewAEADManager() *AEADManagerService {
	return &AEADManagerService{}
}

// CreateCipher creates an AEAD cipher instance for the specified algorithm.
// Returns ErrInvalidKeySize if the key length does not match the algorithm or
// ErrUnsupportedAlgorithm if the algorithm is not an AEAD construct.
func (am *AEADManagerService) CreateCipher(key []byte, alg keysDomain.Algorithm) (AEAD, error) {
	switch alg {
	case keysDomain.AES128GCM:
		if len(key) != 16 {
			return nil, keysDomain.ErrInvalidKeySize
		}
		return NewAESGCM(key)
	case keysDomain.AES256GCM:
		if len(key) != 32 {
			return nil, keysDomain.ErrInvalidKeySize
		}
		return NewAESGCM(key)
	case keysDomain.ChaCha20Poly1305:
		if len(key) != 32 {
			return nil, keysDomain.ErrInvalidKeySize
		}
		return NewChaCha20Poly1305(key)
	default:
		return nil, keysDomain.ErrUnsupportedAlgorithm
	}
}
