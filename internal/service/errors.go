package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrValidation   = errors.New("validation")   // 400
	ErrNotFound     = errors.New("not found")    // 404
	ErrInvalidState = errors.New("invalid state") // 409
	ErrAlreadyPaid  = errors.New("order already paid")
	// ErrStaleWrite means an optimistic write lost against a concurrent
	// mutation; the caller should refresh the cart and retry.
	ErrStaleWrite = errors.New("stale write")
)

// PaymentFailedError is a gateway refusal or outage: the cart is untouched
// and the customer may retry. OutcomeUnknown is set when the call timed out,
// in which case the charge may have gone through on the gateway's side and a
// retry needs a fresh idempotency key.
type PaymentFailedError struct {
	Reason         string
	OutcomeUnknown bool
	Err            error
}

func (e *PaymentFailedError) Error() string {
	if e.OutcomeUnknown {
		return fmt.Sprintf("payment failed (outcome unknown): %s", e.Reason)
	}
	return fmt.Sprintf("payment failed: %s", e.Reason)
}

func (e *PaymentFailedError) Unwrap() error { return e.Err }

// ReconciliationError means money was captured but the order could not be
// marked paid. It is fatal: operators must reconcile against the gateway
// transaction, and callers must never retry the checkout as-is.
type ReconciliationError struct {
	OrderID       uuid.UUID
	TransactionID string
	AmountMinor   int64
	Err           error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("payment captured (txn %s) but order %s not finalized: %v",
		e.TransactionID, e.OrderID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
