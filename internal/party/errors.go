package party

import "errors"

// Error kinds returned by the Manager.  Callers match them with errors.Is.
// ErrNotFound from Join and Leave is wrapped with the party id, and
// ErrInvalidCapacity and ErrTransactionConflict with detail text; the other
// kinds are returned bare.
var (
	// ErrNotFound: the party does not exist (never created, or deleted when
	// its last participant left).
	ErrNotFound = errors.New("party not found")
	// ErrNotAParticipant: leave was called by a client with no membership row.
	ErrNotAParticipant = errors.New("not a participant of this party")
	// ErrEntitlementMissing: the client holds no active ticket for the party's
	// movie, or the store rejected the participant insert.
	ErrEntitlementMissing = errors.New("an active ticket for this movie is required")
	ErrInvalidSchedule    = errors.New("scheduled time must not be in the past")
	ErrInvalidCapacity    = errors.New("max participants out of range")
	// ErrTransactionConflict: the store aborted the transaction because of a
	// concurrent mutation (deadlock or lock wait timeout).  Safe to retry.
	ErrTransactionConflict = errors.New("concurrent update, please retry")

	ErrPartyFull       = errors.New("party is full")
	ErrPartyClosed     = errors.New("party is no longer open")
	ErrInvalidJoinCode = errors.New("invalid join code")
	ErrJoinCodeTaken   = errors.New("join code already in use")
)
