// Package queue defines message payloads exchanged over the message broker.
package queue

import (
    "time"

    "github.com/google/uuid"
)

// Party event types.  The routing is by queue, the type travels in the body.
const (
    EventPartyCreated     = "party.created"
    EventPartyJoined      = "party.joined"
    EventPartyLeft        = "party.left"
    EventHostTransferred  = "party.host_transferred"
    EventPartyDeleted     = "party.deleted"
)

// PartyEvent is published after a membership transaction commits.  It
// carries enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type PartyEvent struct {
    ID         string `json:"id"`
    Type       string `json:"type"`
    PartyID    uint64 `json:"party_id"`
    ClientID   uint64 `json:"client_id"`
    MovieID    uint64 `json:"movie_id,omitempty"`
    HostID     uint64 `json:"host_id,omitempty"`
    OccurredAt string `json:"occurred_at"`
}

// NewPartyEvent stamps a new event with a random id and the given time.
func NewPartyEvent(typ string, partyID, clientID uint64, at time.Time) PartyEvent {
    return PartyEvent{
        ID:         uuid.NewString(),
        Type:       typ,
        PartyID:    partyID,
        ClientID:   clientID,
        OccurredAt: at.UTC().Format(time.RFC3339),
    }
}
