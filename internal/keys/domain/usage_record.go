package domain

import (
	"time"

	"github.com/google/uuid"
)

// KeyUsageRecord is one entry in the append-only usage log. Every generate,
// retrieve, encrypt, decrypt, and rotate call produces exactly one record,
// even when the operation fails. KeyID is uuid.Nil when the call failed
// before any stored key was resolved; such records are persisted with a NULL
// key reference. The subsystem exposes no update or delete operations on
// this log.
//
// Signature is an HMAC-SHA256 over the record's canonical encoding, produced
// with a key derived from the master key, so tampering with stored records is
// detectable after the fact.
type KeyUsageRecord struct {
	ID        uuid.UUID
	KeyID     uuid.UUID
	Operation Operation
	UserID    string // Optional; empty when the caller supplied none
	Success   bool
	Signature []byte
	CreatedAt time.Time
}
