package model

import "time"

// Ticket grants a client access to one movie.  A client holds at most one
// active ticket per movie; an active ticket is the entitlement required to
// host or join a watch party for that movie.
type Ticket struct {
    ID         uint64    // tickets.id
    ClientID   uint64    // tickets.client_id
    MovieID    uint64    // tickets.movie_id
    PriceCents uint32    // tickets.price_cents
    AccessCode string    // tickets.access_code
    IsActive   bool      // tickets.is_active
    CreatedAt  time.Time // tickets.created_at
}

// Payment is the mocked payment record written alongside a ticket.
type Payment struct {
    ID            uint64    // payments.id
    TicketID      uint64    // payments.ticket_id
    AmountCents   uint32    // payments.amount_cents
    Method        string    // payments.method
    Status        string    // payments.status
    TransactionID string    // payments.transaction_id
    CreatedAt     time.Time // payments.created_at
}
