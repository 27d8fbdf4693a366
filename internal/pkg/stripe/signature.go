package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is how far a webhook timestamp may drift from now
// before the signature is rejected (replay protection).
const DefaultTolerance = 5 * time.Minute

// SignatureHeader is the parsed Stripe-Signature header.
// Format: t=<unix ts>,v1=<hex hmac>[,v1=<hex hmac>...]
type SignatureHeader struct {
	Timestamp  time.Time
	Signatures []string
}

// ParseSignatureHeader splits the Stripe-Signature header into its
// timestamp and v1 signature candidates.
func ParseSignatureHeader(header string) (*SignatureHeader, error) {
	if strings.TrimSpace(header) == "" {
		return nil, fmt.Errorf("signature header is empty")
	}

	parsed := &SignatureHeader{}
	for _, pair := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid timestamp: %w", err)
			}
			parsed.Timestamp = time.Unix(ts, 0)
		case "v1":
			parsed.Signatures = append(parsed.Signatures, kv[1])
		}
	}

	if parsed.Timestamp.IsZero() {
		return nil, fmt.Errorf("timestamp is missing")
	}
	if len(parsed.Signatures) == 0 {
		return nil, fmt.Errorf("no v1 signatures present")
	}

	return parsed, nil
}

// Sign computes the expected v1 signature for a payload at ts:
// HMAC-SHA256(secret, "<unix ts>.<payload>").
func Sign(payload []byte, ts time.Time, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the payload against the Stripe-Signature header
// using the endpoint secret, rejecting timestamps outside the tolerance
// window around now.
func VerifySignature(payload []byte, header string, secret string, now time.Time, tolerance time.Duration) error {
	if secret == "" {
		return fmt.Errorf("webhook secret is not configured")
	}

	parsed, err := ParseSignatureHeader(header)
	if err != nil {
		return err
	}

	drift := now.Sub(parsed.Timestamp)
	if drift < 0 {
		drift = -drift
	}
	if drift > tolerance {
		return fmt.Errorf("timestamp outside tolerance window")
	}

	expected := Sign(payload, parsed.Timestamp, secret)
	for _, candidate := range parsed.Signatures {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1 {
			return nil
		}
	}

	return fmt.Errorf("no matching v1 signature")
}
