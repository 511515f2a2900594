package domain

import (
	"github.com/phivault/phivault/internal/errors"
)

// Master key validation errors. All of these are fatal at startup in
// production, staging, and testing environments; there is no degraded mode.
var (
	// ErrMissingMasterKey indicates no master key was configured in an
	// environment that requires one.
	ErrMissingMasterKey = errors.Wrap(errors.ErrFatal, "missing master key")

	// ErrInvalidEncoding indicates the configured master key is not valid base64.
	ErrInvalidEncoding = errors.Wrap(errors.ErrFatal, "invalid master key encoding")

	// ErrKeyTooShort indicates the decoded master key is shorter than 32 bytes.
	ErrKeyTooShort = errors.Wrap(errors.ErrFatal, "master key too short")

	// ErrInsufficientEntropy indicates the decoded master key failed the
	// Shannon entropy gate. The measured value stays in server-side logs only.
	ErrInsufficientEntropy = errors.Wrap(errors.ErrFatal, "insufficient master key entropy")
)

// Key lifecycle errors, recoverable by calling EnsureDefaultKeys or RotateKey.
var (
	// ErrNoActiveKey indicates no active key exists for the requested level.
	ErrNoActiveKey = errors.Wrap(errors.ErrNotFound, "no active key for level")

	// ErrExpiredKey indicates the stored key's expiry is in the past.
	ErrExpiredKey = errors.Wrap(errors.ErrInvalidInput, "key expired")

	// ErrInactiveKey indicates a key flagged active in the lookup path turned
	// out to be inactive on the defensive re-check.
	ErrInactiveKey = errors.Wrap(errors.ErrInvalidInput, "key inactive")

	// ErrKeyNotFound indicates no key record exists for the given ID.
	ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "key not found")
)

// Caller-facing decrypt failures. Never retried automatically: retrying
// identical ciphertext cannot change the outcome.
var (
	// ErrUnknownKey indicates the package references a key ID that does not exist.
	ErrUnknownKey = errors.Wrap(errors.ErrNotFound, "unknown key")

	// ErrAlgorithmMismatch indicates the package algorithm disagrees with the
	// stored key's algorithm.
	ErrAlgorithmMismatch = errors.Wrap(errors.ErrInvalidInput, "algorithm mismatch")

	// ErrAuthenticationFailed indicates the AEAD tag check failed: the
	// ciphertext was tampered with or the wrong key was used. The generic
	// signal is deliberate; which check failed is never disclosed to callers.
	ErrAuthenticationFailed = errors.Wrap(errors.ErrInvalidInput, "authentication failed")
)

// Other domain errors.
var (
	// ErrUnsupportedAlgorithm indicates the requested algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates key material of an unexpected length.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrUnsupportedLevel indicates an unknown encryption level.
	ErrUnsupportedLevel = errors.Wrap(errors.ErrInvalidInput, "unsupported encryption level")

	// ErrInvalidPackageFormat indicates a serialized package that cannot be parsed.
	ErrInvalidPackageFormat = errors.Wrap(errors.ErrInvalidInput, "invalid package format")

	// ErrAuditWriteFailed indicates a usage record could not be appended.
	// Logged loudly, never propagated as the primary operation's failure.
	ErrAuditWriteFailed = errors.Wrap(errors.ErrInternal, "audit write failed")

	// ErrSignatureInvalid indicates a usage record's signature does not match
	// its contents, meaning the append-only log was tampered with.
	ErrSignatureInvalid = errors.Wrap(errors.ErrInvalidInput, "usage record signature invalid")
)
