package model

import "errors"

// Sentinel errors shared by the market layers. Match them with errors.Is.
var (
	// ErrNotFound is returned by services when an offer, order or player is unknown.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when a lifecycle transition is not allowed.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrInvalidIndex is returned when a collection box index is out of range.
	ErrInvalidIndex = errors.New("invalid collection index")

	// ErrValidation is returned when a request violates market rules.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden is returned when a player acts on a record they do not own.
	ErrForbidden = errors.New("forbidden")

	// ErrSlotUnavailable is returned when the requested slot is out of range or occupied.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrInsufficientFunds is returned when a player's bank cannot cover an escrow.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrRateLimited is returned when a player creates offers faster than the cooldown allows.
	ErrRateLimited = errors.New("rate limited")
)
