package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// Payment is one gateway transaction attempt for one booking. Only Status,
// VerifiedAt and UpdatedAt change after creation.
type Payment struct {
	ID          string     `json:"id"`
	BookingID   string     `json:"booking_id"`
	PayerID     string     `json:"payer_id"`
	PayerEmail  string     `json:"payer_email"`
	TxRef       string     `json:"tx_ref"`
	ProviderRef string     `json:"provider_ref,omitempty"`
	CheckoutURL string     `json:"checkout_url,omitempty"`
	Amount      Money      `json:"amount"`
	Method      string     `json:"payment_method"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
}

type InitiatePaymentRequest struct {
	BookingID     string `json:"booking_id" validate:"required,mongodb"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=credit_card paypal bank_transfer"`
}

type InitiatePaymentResponse struct {
	CheckoutURL string `json:"checkout_url"`
	TxRef       string `json:"tx_ref"`
}

type VerifyPaymentResponse struct {
	TxRef  string `json:"tx_ref"`
	Status string `json:"status"`
}

func IsTerminalPaymentStatus(status string) bool {
	return status == PaymentCompleted || status == PaymentFailed
}

func (p *Payment) IsTerminal() bool {
	return IsTerminalPaymentStatus(p.Status)
}

// CanTransitionTo allows pending -> completed and pending -> failed only.
func (p *Payment) CanTransitionTo(target string) error {
	if p.Status == PaymentPending && IsTerminalPaymentStatus(target) {
		return nil
	}
	return fmt.Errorf("invalid payment transition from %q to %q", p.Status, target)
}

const maxTxRefPayerLength = 64

// TxRefFor derives the gateway transaction reference. Booking IDs are unique and
// attempts are monotonic per booking, so the result is globally unique.
func TxRefFor(bookingID, payerID string, attempt int) string {
	return fmt.Sprintf("booking_%s_%s_%d", bookingID, txRefPayer(payerID), attempt)
}

// txRefPayer keeps payer IDs made of [A-Za-z0-9.-] verbatim and replaces any
// other ID with a short digest, so every reference stays printable ASCII.
func txRefPayer(payerID string) string {
	if payerID != "" && len(payerID) <= maxTxRefPayerLength && isTxRefSafe(payerID) {
		return payerID
	}
	sum := sha256.Sum256([]byte(payerID))
	return "h" + hex.EncodeToString(sum[:8])
}

func isTxRefSafe(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '.':
		default:
			return false
		}
	}
	return true
}
