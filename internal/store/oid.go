package store

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// OID is the storage key under which a record's blob is stored.
// Always a lowercase hex-like string.
type OID string

// RootOID is the reserved, non-hashed identifier of the root mapping.
// It is shorter than the shard threshold and therefore stored flat,
// distinct from all content-derived keys.
const RootOID OID = "root"

// shardThreshold is the key length at or above which blobs are sharded
// into nested two-character directories. Hex SHA-256 OIDs (64 chars) and
// hex UUID OIDs (32 chars) shard; reserved names such as "root" stay flat.
const shardThreshold = 32

// OIDFromDomainID derives a deterministic OID from an application-level
// domain id.
//
// The id is NFC-normalized before hashing so that unicode representation
// differences in user-supplied names cannot split one logical identity
// into two storage keys.
func OIDFromDomainID(domainID string) OID {
	sum := sha256.Sum256([]byte(norm.NFC.String(domainID)))
	return OID(hex.EncodeToString(sum[:]))
}

// NewOID returns a fresh random OID for objects without a domain id.
// Uses github.com/google/uuid for RFC 4122 compliant randomness; the
// UUID bytes are hex encoded to keep the key alphabet uniform.
func NewOID() OID {
	u := uuid.New()
	return OID(hex.EncodeToString(u[:]))
}
