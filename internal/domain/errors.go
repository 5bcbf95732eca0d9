package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Authorization and
// state-conflict failures are distinct kinds: a caller must be able to tell
// "you can't approve this" from "there's nothing to approve".

var (
	// Authorization
	ErrUnauthorized       = errors.New("caller lacks the required role")
	ErrProLicenseRequired = errors.New("pro license required")

	// Session state machine
	ErrSessionConflict = errors.New("an active session already exists")
	ErrNoActiveSession = errors.New("no active session")

	// Billing
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidSignature    = errors.New("invalid webhook signature")

	// Lookups
	ErrNotFound = errors.New("not found")
)
