package service

import (
	"fmt"

	keysDomain "github.com/phivault/phivault/internal/keys/domain"
)

// KeyWrapperService implements KeyWrapper by encrypting key material under the
// master key with an AEAD cipher. The wrap algorithm is fixed at construction
// (aes-256-gcm or chacha20-poly1305) and applies to every wrapped key.
type KeyWrapperService struct {
	masterKey   *keysDomain.MasterKey
	aeadManager AEADManager
	algorithm   keysDomain.Algorithm
}

// NewKeyWrapper creates a KeyWrapperService bound to the given master key.
// Returns ErrUnsupportedAlgorithm if alg is not a 256-bit AEAD construct.
func NewKeyWrapper(
	masterKey *keysDomain.MasterKey,
	aeadManager AEADManager,
	alg keysDomain.Algorithm,
) (*KeyWrapperService, error) {
	if alg != keysDomain.AES256GCM && alg != keysDomain.ChaCha20Poly1305 {
		return nil, fmt.Errorf("%w: %q is not a valid wrap algorithm", keysDomain.ErrUnsupportedAlgorithm, alg)
	}

	return &KeyWrapperService{
		masterKey:   masterKey,
		aeadManager: aeadManager,
		algorithm:   alg,
	}, nil
}

// Wrap encrypts raw key material under the master key.
func (w *KeyWrapperService) Wrap(material []byte) (wrapped, nonce []byte, err error) {
	aead, err := w.aeadManager.CreateCipher(w.masterKey.Key[:32], w.algorithm)
	if err != nil {
		return nil, nil, err
	}

	wrapped, nonce, err = aead.Encrypt(material, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to wrap key material: %w", err)
	}
	return wrapped, nonce, nil
}

// Unwrap decrypts wrapped key material back into plaintext bytes. The caller
// owns the returned bytes and must zero them after use.
func (w *KeyWrapperService) Unwrap(wrapped, nonce []byte) ([]byte, error) {
	aead, err := w.aeadManager.CreateCipher(w.masterKey.Key[:32], w.algorithm)
	if err != nil {
		return nil, err
	}

	material, err := aead.Decrypt(wrapped, nonce, nil)
	if err != nil {
		return nil, keysDomain.ErrAuthenticationFailed
	}
	return material, nil
}
