package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for checksums.
// Version suffix enables future algorithm migration.
const (
	DomainNextModelRecord = "labroutine/next-model/v1"
	DomainScript          = "labroutine/script/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordChecksum computes the checksum stored alongside a NextModelRecord.
// The Dispatched flag is excluded; it changes after the record is written.
func RecordChecksum(r NextModelRecord) (string, error) {
	canonical, err := MarshalCanonical(r.canonicalMap())
	if err != nil {
		return "", fmt.Errorf("RecordChecksum: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainNextModelRecord, canonical), nil
}

// ScriptHash identifies a script text. Used to tie a successful
// validation to the exact text that was validated.
func ScriptHash(src string) string {
	canonical, err := marshalCanonicalString(src)
	if err != nil {
		// Encoding a Go string cannot fail.
		panic(err)
	}
	return hashWithDomain(DomainScript, canonical)
}

// MustRecordChecksum is like RecordChecksum but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRecordChecksum(r NextModelRecord) string {
	sum, err := RecordChecksum(r)
	if err != nil {
		panic(err)
	}
	return sum
}
