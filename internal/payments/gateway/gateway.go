// Package gateway isolates the external payment provider behind a small port
// so the reconciliation logic never builds provider URLs or headers.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"rentpay/pkg/model"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusUnknown Status = "unknown"
)

type InitializeRequest struct {
	Amount      model.Money
	PayerEmail  string
	PayerPhone  string
	TxRef       string
	CallbackURL string
	ReturnURL   string
}

type InitializeResult struct {
	CheckoutURL string
	ProviderRef string
}

// Client is the payment gateway port.
type Client interface {
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	Verify(ctx context.Context, txRef string) (Status, error)
}

type ErrorKind int

const (
	// Unreachable covers network failures, timeouts and provider 5xx/429.
	// The call may be retried.
	Unreachable ErrorKind = iota
	// Rejected is a provider business rejection (4xx). Retrying the same
	// request will not help.
	Rejected
)

func (k ErrorKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind       ErrorKind
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("gateway %s %s", e.Operation, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func IsUnreachable(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Kind == Unreachable
}

func IsRejected(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Kind == Rejected
}
