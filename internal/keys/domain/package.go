package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EncryptedPackage is the transient result of an encrypt operation, returned
// to the caller and never stored by this subsystem. KeyID pins the exact key
// used so decryption stays correct across rotations.
//
// For critical level packages the per-call nonce and authentication tag travel
// alongside the ciphertext. For basic and healthcare levels the nonce is
// embedded in the versioned ciphertext token and Nonce/Tag are empty.
type EncryptedPackage struct {
	KeyID       uuid.UUID
	Level       EncryptionLevel
	Algorithm   Algorithm
	Ciphertext  []byte
	Nonce       []byte
	Tag         []byte
	EncryptedAt time.Time
}

// String serializes the package as
// "key_id:level:algorithm:ciphertext-b64:nonce-b64:tag-b64".
// Nonce and tag segments are empty for levels that embed them in the token.
func (p EncryptedPackage) String() string {
	return fmt.Sprintf(
		"%s:%s:%s:%s:%s:%s",
		p.KeyID,
		p.Level,
		p.Algorithm,
		base64.StdEncoding.EncodeToString(p.Ciphertext),
		base64.StdEncoding.EncodeToString(p.Nonce),
		base64.StdEncoding.EncodeToString(p.Tag),
	)
}

// ParsePackage deserializes a package produced by String. EncryptedAt is not
// part of the wire form and is left zero.
func ParsePackage(content string) (EncryptedPackage, error) {
	parts := strings.Split(content, ":")
	if len(parts) != 6 {
		return EncryptedPackage{}, fmt.Errorf(
			"%w: expected 6 segments, got %d", ErrInvalidPackageFormat, len(parts),
		)
	}

	keyID, err := uuid.Parse(parts[0])
	if err != nil {
		return EncryptedPackage{}, fmt.Errorf("%w: bad key id: %v", ErrInvalidPackageFormat, err)
	}

	level, err := ParseLevel(parts[1])
	if err != nil {
		return EncryptedPackage{}, fmt.Errorf("%w: bad level %q", ErrInvalidPackageFormat, parts[1])
	}

	ciphertext, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return EncryptedPackage{}, fmt.Errorf("%w: bad ciphertext: %v", ErrInvalidPackageFormat, err)
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return EncryptedPackage{}, fmt.Errorf("%w: bad nonce: %v", ErrInvalidPackageFormat, err)
	}

	tag, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil {
		return EncryptedPackage{}, fmt.Errorf("%w: bad tag: %v", ErrInvalidPackageFormat, err)
	}

	pkg := EncryptedPackage{
		KeyID:      keyID,
		Level:      level,
		Algorithm:  Algorithm(parts[2]),
		Ciphertext: ciphertext,
	}
	if len(nonce) > 0 {
		pkg.Nonce = nonce
	}
	if len(tag) > 0 {
		pkg.Tag = tag
	}
	return pkg, nil
}
