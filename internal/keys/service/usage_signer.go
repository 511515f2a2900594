package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	keysDomain "github.com/phivault/phivault/internal/keys/domain"
)

// usageSigner signs usage log records with HMAC-SHA256. The signing key is
// derived from the master key with HKDF-SHA256 so encryption key usage and
// signing key usage stay separated.
type usageSigner struct {
	masterKey *keysDomain.MasterKey
}

// NewUsageSigner creates an HMAC-based usage record signer bound to the master key.
func NewUsageSigner(masterKey *keysDomain.MasterKey) UsageSigner {
	return &usageSigner{masterKey: masterKey}
}

// deriveSigningKey derives a 32-byte signing key from the master key.
// Info parameter: "usage-log-signing-v1" (versioned for future algorithm changes).
func (s *usageSigner) deriveSigningKey() ([]byte, error) {
	info := []byte("usage-log-signing-v1")
	reader := hkdf.New(sha256.New, s.masterKey.Key, nil, info)

	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(reader, signingKey); err != nil {
		return nil, err
	}

	return signingKey, nil
}

// canonicalize converts a usage record to its canonical byte representation.
// Format: id || key_id || operation || user_id || success || created_at.
// Variable-length fields are length-prefixed to prevent ambiguity.
func (s *usageSigner) canonicalize(record *keysDomain.KeyUsageRecord) []byte {
	buf := make([]byte, 0, 128)

	buf = append(buf, record.ID[:]...)
	buf = append(buf, record.KeyID[:]...)
	buf = appendLengthPrefixed(buf, []byte(record.Operation))
	buf = appendLengthPrefixed(buf, []byte(record.UserID))

	if record.Success {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	timeBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(timeBytes, uint64(record.CreatedAt.UnixNano()))
	buf = append(buf, timeBytes...)

	return buf
}

// appendLengthPrefixed adds a 4-byte big-endian length prefix followed by data.
func appendLengthPrefixed(buf []byte, data []byte) []byte {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))
	buf = append(buf, length...)
	buf = append(buf, data...)
	return buf
}

// Sign generates the HMAC-SHA256 signature for the usage record.
func (s *usageSigner) Sign(record *keysDomain.KeyUsageRecord) ([]byte, error) {
	signingKey, err := s.deriveSigningKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	defer keysDomain.Zero(signingKey)

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(s.canonicalize(record))
	return mac.Sum(nil), nil
}

// Verify checks the usage record's signature against its contents.
// Returns ErrSignatureInvalid when the record was tampered with.
func (s *usageSigner) Verify(record *keysDomain.KeyUsageRecord) error {
	expected, err := s.Sign(record)
	if err != nil {
		return fmt.Errorf("failed to compute expected signature: %w", err)
	}

	if !hmac.Equal(expected, record.Signature) {
		return keysDomain.ErrSignatureInvalid
	}
	return nil
}
