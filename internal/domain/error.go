package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Registration
	ErrInvalidBotToken     = errors.New("invalid bot token format")
	ErrAlreadyRegistered   = errors.New("bot already registered")
	ErrRegistrationFailed  = errors.New("registration failed")
	ErrInvalidGatewayToken = errors.New("invalid gateway token")

	// Payments
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
	ErrAmountNotNumeric     = errors.New("amount is not a number")
	ErrAmountOutOfRange     = errors.New("amount out of range")
	ErrPaymentFailed        = errors.New("payment creation failed")
	ErrOAuthExchange        = errors.New("oauth code exchange failed")

	// Access
	ErrOwnerOnly = errors.New("command restricted to the bot owner")

	// Store and processes
	ErrStoreBusy     = errors.New("store busy")
	ErrStaleProcess  = errors.New("process record does not match a running worker")
	ErrProcessExited = errors.New("process already exited")
	ErrLockHeld      = errors.New("lock held by another holder")
)
