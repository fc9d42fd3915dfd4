package errors

import "errors"

var (
	ErrNotFound = errors.New("payment not found")

	ErrDuplicatePayment = errors.New("payment already exists for this tx_ref or a pending payment exists for this booking and method")

	// ErrStaleStatus means the payment left the expected status before the
	// conditional update ran.
	ErrStaleStatus = errors.New("payment status changed concurrently")
)
