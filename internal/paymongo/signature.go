package paymongo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries "t=<unix ts>,te=<test digest>,li=<live digest>".
const SignatureHeader = "Paymongo-Signature"

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrMissingTimestamp = errors.New("webhook signature has no timestamp")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

type Signature struct {
	Timestamp string
	Test      string
	Live      string
}

func ParseSignature(header string) (Signature, error) {
	var sig Signature
	if strings.TrimSpace(header) == "" {
		return sig, ErrMissingSignature
	}

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "t":
			sig.Timestamp = strings.TrimSpace(value)
		case "te":
			sig.Test = strings.TrimSpace(value)
		case "li":
			sig.Live = strings.TrimSpace(value)
		}
	}

	if sig.Timestamp == "" {
		return sig, ErrMissingTimestamp
	}
	return sig, nil
}

// ComputeSignature returns hex(HMAC-SHA256(secret, timestamp + "." + body)).
func ComputeSignature(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the raw request body. It accepts
// either the test-mode or the live-mode digest.
func VerifySignature(header string, body []byte, secret string) error {
	sig, err := ParseSignature(header)
	if err != nil {
		return err
	}
	if secret == "" {
		return ErrInvalidSignature
	}

	expected := ComputeSignature(secret, sig.Timestamp, body)
	if digestEqual(expected, sig.Test) || digestEqual(expected, sig.Live) {
		return nil
	}
	return ErrInvalidSignature
}

func digestEqual(expected, got string) bool {
	if got == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(got)))
}
