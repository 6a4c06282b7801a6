package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// DefaultTimestampTolerance bounds how far a webhook timestamp may drift from
// server time, in either direction, before the request is rejected.
const DefaultTimestampTolerance = 300 * time.Second

// Validation failure reasons, ordered by the short-circuit sequence in
// Validate. The messages are part of the webhook response contract.
var (
	ErrMissingPayload   = errors.New("missing payload")
	ErrMissingSignature = errors.New("missing signature")
	ErrMissingTimestamp = errors.New("missing timestamp")
	ErrMissingSecret    = errors.New("missing secret")
	ErrStaleTimestamp   = errors.New("request timestamp too old or invalid")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Sign computes the HMAC-SHA256 signature for a webhook payload, hex encoded
// with the conventional "sha256=" prefix.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an HMAC-SHA256 hex signature over the raw request
// body. The "sha256=" prefix is optional. Comparison is constant-time;
// signatures of the wrong length or with malformed hex are rejected without
// entering the byte comparison.
func VerifySignature(payload []byte, signature, secret string) bool {
	if len(payload) == 0 || signature == "" || secret == "" {
		return false
	}

	received := strings.TrimPrefix(signature, "sha256=")

	receivedBytes, err := hex.DecodeString(received)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	// A length mismatch only reveals that the digest is malformed, never
	// anything about the expected value.
	if len(receivedBytes) != len(expected) {
		return false
	}

	return subtle.ConstantTimeCompare(expected, receivedBytes) == 1
}

// VerifyTimestamp checks that a Unix-seconds timestamp is within tolerance of
// server time. Both stale and future timestamps are rejected so replayed and
// clock-skewed deliveries fail symmetrically. A zero or unparsable timestamp
// is invalid.
func VerifyTimestamp(timestamp string, tolerance time.Duration) bool {
	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil || ts == 0 {
		return false
	}

	drift := time.Now().Unix() - ts
	if drift < 0 {
		drift = -drift
	}
	return drift <= int64(tolerance.Seconds())
}

// Validate performs the complete webhook security check. Missing inputs fail
// first, then the timestamp (cheap) before the signature (cryptographic work),
// so malformed traffic is shed before any hashing happens.
func Validate(payload []byte, signature, timestamp, secret string, tolerance time.Duration) error {
	if len(payload) == 0 {
		return ErrMissingPayload
	}
	if signature == "" {
		return ErrMissingSignature
	}
	if timestamp == "" {
		return ErrMissingTimestamp
	}
	if secret == "" {
		return ErrMissingSecret
	}

	if !VerifyTimestamp(timestamp, tolerance) {
		return ErrStaleTimestamp
	}
	if !VerifySignature(payload, signature, secret) {
		return ErrInvalidSignature
	}
	return nil
}
