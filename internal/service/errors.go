package service

import (
	"errors"
	"fmt"

	"donation-platform/internal/paymongo"
)

var ErrNotFound = errors.New("transaction not found")

// ValidationError is a problem with caller input.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// StoreError is a failed read or write against the backing store.
type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// CheckoutError is a provider failure after both rows were written. The
// ids let an operator find the failed attempt.
type CheckoutError struct {
	TransactionID int64
	DonationID    int64
	Err           error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout for transaction %d: %v", e.TransactionID, e.Err)
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

// Provider returns the provider's error response, if there was one.
func (e *CheckoutError) Provider() *paymongo.APIError {
	var apiErr *paymongo.APIError
	if errors.As(e.Err, &apiErr) {
		return apiErr
	}
	return nil
}
