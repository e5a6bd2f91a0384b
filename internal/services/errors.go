package services

import "errors"

// Business errors shared by the entitlement operations. Handlers map these
// to HTTP statuses; everything else is an internal error.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrNotEligible         = errors.New("pending review, cannot be monetized yet")
	ErrAlreadyUnlocked     = errors.New("lead already unlocked")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// CodeInsufficientBalance is the machine-readable code returned with 402
// responses so clients can prompt a top-up.
const CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
