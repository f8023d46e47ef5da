// Package erasure implements the erasure-webhook pipeline: signature check, payload
// parsing, rule resolution, entry deletion and audit recording.
package erasure

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SignatureHeaderName carries the webhook signature descriptor.
const SignatureHeaderName = "Roblox-Signature"

// ErrAuthenticationFailure rejects a delivery whose signature does not verify.
var ErrAuthenticationFailure = errors.New("erasure: authentication failure")

// VerifySignature checks header against the HMAC-SHA256 of "{t}.{body}" keyed by secret.
// An empty secret with an empty header disables authentication.
func VerifySignature(body []byte, header, secret string) error {
	header = strings.TrimSpace(header)
	if secret == "" {
		if header == "" {
			return nil
		}
		return fmt.Errorf("%w: signature supplied but no secret configured", ErrAuthenticationFailure)
	}
	if header == "" {
		return fmt.Errorf("%w: missing %s header", ErrAuthenticationFailure, SignatureHeaderName)
	}

	timestamp, signatures := parseSignatureHeader(header)
	if timestamp == "" || len(signatures) == 0 {
		return fmt.Errorf("%w: malformed %s header", ErrAuthenticationFailure, SignatureHeaderName)
	}
	expected := []byte(computeSignature(secret, timestamp, body))
	for _, candidate := range signatures {
		if hmac.Equal(expected, []byte(candidate)) {
			return nil
		}
	}
	return fmt.Errorf("%w: signature mismatch", ErrAuthenticationFailure)
}

// SignatureHeader builds a header value that VerifySignature accepts.
func SignatureHeader(secret string, timestamp int64, body []byte) string {
	ts := strconv.FormatInt(timestamp, 10)
	return "t=" + ts + ",v1=" + computeSignature(secret, ts, body)
}

func computeSignature(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// parseSignatureHeader splits "t=<ts>,v1=<sig>[,v1=<sig>...]". Unknown keys are ignored.
func parseSignatureHeader(header string) (string, []string) {
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "t":
			if timestamp == "" {
				timestamp = value
			}
		case "v1":
			if value != "" {
				signatures = append(signatures, value)
			}
		}
	}
	return timestamp, signatures
}
