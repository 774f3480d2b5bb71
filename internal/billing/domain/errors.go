package domain

import "errors"

var (
	// ErrPaymentNotFound indicates no payment matched the lookup.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrDuplicatePayment indicates the provider payment was already recorded.
	ErrDuplicatePayment = errors.New("payment already recorded")

	// ErrInvalidPurchase indicates a purchase fact is missing required fields.
	ErrInvalidPurchase = errors.New("invalid purchase")
)
