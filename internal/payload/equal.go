package payload

import (
	"crypto/sha256"
	"encoding/hex"
)

// RedactionPlaceholder is the sentinel stored in place of an output when the
// restrictive logging preference is active.
const RedactionPlaceholder = "[output hidden]"

// Redacted returns the fixed placeholder payload used for redacted outputs.
func Redacted() Value {
	return String(RedactionPlaceholder)
}

// Equal reports deep structural equality between two payloads.
//
// Map entries compare as an unordered key set, so two maps built with
// different key insertion orders are equal. Numbers compare by float64
// value. A primitive never equals a composite.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindString:
		return a.str == b.str
	case KindNumber:
		return a.num == b.num
	case KindBool:
		return a.b == b.b
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Fingerprint returns a SHA256 hex digest of the canonical serialization of
// v. Structurally-equal payloads share a fingerprint regardless of map key
// insertion order, so the digest serves as a history deduplication key.
func Fingerprint(v Value) string {
	data, err := v.MarshalJSON()
	if err != nil {
		// Unrepresentable payloads (NaN numbers) hash their text rendering
		// so the caller still gets a stable key.
		data = []byte(v.Text())
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
