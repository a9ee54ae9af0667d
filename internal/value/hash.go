package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainState prefixes state fingerprints. The version suffix leaves room
// for changing the encoding later.
const DomainState = "statebox/state/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns a stable content hash of obj. Equal contents yield
// equal fingerprints regardless of identity or map iteration order.
func Fingerprint(obj Object) (string, error) {
	if obj == nil {
		obj = Object{}
	}
	data, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainState, data), nil
}

// MustFingerprint is Fingerprint for objects built by this package.
func MustFingerprint(obj Object) string {
	fp, err := Fingerprint(obj)
	if err != nil {
		panic(err)
	}
	return fp
}
