package model

import "time"

// PartyStatus is the lifecycle status of a watch party.  Status changes are
// made by administrators; membership transitions never touch it.
type PartyStatus string

const (
    PartyScheduled PartyStatus = "scheduled"
    PartyActive    PartyStatus = "active"
    PartyCompleted PartyStatus = "completed"
    PartyCancelled PartyStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s PartyStatus) Valid() bool {
    switch s {
    case PartyScheduled, PartyActive, PartyCompleted, PartyCancelled:
        return true
    }
    return false
}

// Open reports whether new participants may still join a party in this status.
func (s PartyStatus) Open() bool { return s == PartyScheduled || s == PartyActive }

// WatchParty is a scheduled group viewing of one movie.  It corresponds to a
// row in the `watch_parties` table.  While the row exists HostID always
// references a client with a row in `party_participants` for the same party.
//
// Fields:
//  ID              – primary key identifier.
//  HostID          – client currently owning the party.
//  MovieID         – movie being watched.
//  ScheduledTime   – when the party starts (UTC).
//  JoinCode        – short human-shareable code used to join.
//  Status          – lifecycle status.
//  MaxParticipants – capacity of the party.
//  Description     – optional free text.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type WatchParty struct {
    ID              uint64      // watch_parties.id
    HostID          uint64      // watch_parties.host_id
    MovieID         uint64      // watch_parties.movie_id
    ScheduledTime   time.Time   // watch_parties.scheduled_time
    JoinCode        string      // watch_parties.join_code
    Status          PartyStatus // watch_parties.status
    MaxParticipants int         // watch_parties.max_participants
    Description     *string     // watch_parties.description (nullable)
    CreatedAt       time.Time   // watch_parties.created_at
    UpdatedAt       time.Time   // watch_parties.updated_at
}

// Participant records that a client is currently in a party.  The row's
// existence is the only source of truth for membership.
type Participant struct {
    ID       uint64    // party_participants.id
    PartyID  uint64    // party_participants.party_id
    ClientID uint64    // party_participants.client_id
    JoinedAt time.Time // party_participants.joined_at
}
