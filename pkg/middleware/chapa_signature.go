package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"rentpay/pkg/logger"
)

const (
	ChapaPayloadSignatureHeader = "X-Chapa-Signature"
	ChapaSecretSignatureHeader  = "Chapa-Signature"
)

// ChapaSignatureVerification authenticates gateway webhooks. X-Chapa-Signature
// is an HMAC-SHA256 of the raw body; Chapa-Signature is an HMAC-SHA256 of the
// secret itself. The body signature is preferred when both are present.
//
// GET callbacks carry no body and pass through unsigned: they only name a
// tx_ref, and its outcome is always read back from the gateway.
func ChapaSignatureVerification(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			payloadSig := normalizeSignature(r.Header.Get(ChapaPayloadSignatureHeader))
			secretSig := normalizeSignature(r.Header.Get(ChapaSecretSignatureHeader))

			if payloadSig == "" && secretSig == "" {
				rejectWebhook(w, log, r, "Missing webhook signature header")
				return
			}

			body, err := readAndRestoreBody(r)
			if err != nil {
				rejectWebhook(w, log, r, "Failed to read request body")
				return
			}

			var valid bool
			if payloadSig != "" {
				valid = verifySignature(body, payloadSig, secret)
			} else {
				valid = verifySignature([]byte(secret), secretSig, secret)
			}
			if !valid {
				rejectWebhook(w, log, r, "Invalid webhook signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func normalizeSignature(header string) string {
	header = strings.TrimSpace(header)
	if signature, found := strings.CutPrefix(header, "sha256="); found {
		return strings.ToLower(signature)
	}
	return strings.ToLower(header)
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte{}, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	return body, nil
}

func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(payload []byte, receivedSignature string, secret string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(receivedSignature))
}

func rejectWebhook(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Gateway webhook verification failed",
		"request_id", RequestIDFromContext(r.Context()),
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)

	writeJSONError(w, http.StatusUnauthorized, `{"error":"Unauthorized","code":"UNAUTHORIZED"}`)
}
