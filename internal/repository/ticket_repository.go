package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/watch-party/internal/model"
    "github.com/iliyamo/watch-party/internal/utils"
)

// TicketRepo provides access to tickets and their mocked payments.  It is
// also the entitlement check used by the party service.
type TicketRepo struct {
    db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// HasActiveTicket reports whether the client holds an active ticket for the movie.
func (r *TicketRepo) HasActiveTicket(ctx context.Context, clientID, movieID uint64) (bool, error) {
    return hasActiveTicket(ctx, r.db, clientID, movieID)
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
    QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func hasActiveTicket(ctx context.Context, q queryRower, clientID, movieID uint64) (bool, error) {
    var one int
    err := q.QueryRowContext(ctx,
        `SELECT 1 FROM tickets WHERE client_id = ? AND movie_id = ? AND is_active = 1 LIMIT 1`,
        clientID, movieID).Scan(&one)
    if errors.Is(err, sql.ErrNoRows) {
        return false, nil
    }
    if err != nil {
        return false, classify(err)
    }
    return true, nil
}

// TicketDetail is a ticket joined with its movie for the "my tickets" list.
type TicketDetail struct {
    ID         uint64  `json:"id"`
    MovieID    uint64  `json:"movie_id"`
    MovieTitle string  `json:"movie_title"`
    PosterURL  *string `json:"poster_url,omitempty"`
    PriceCents uint32  `json:"price_cents"`
    AccessCode string  `json:"access_code"`
    IsActive   bool    `json:"is_active"`
    CreatedAt  string  `json:"created_at"`
}

// ListByClient returns every ticket of a client, newest first.
func (r *TicketRepo) ListByClient(ctx context.Context, clientID uint64) ([]TicketDetail, error) {
    const q = `SELECT t.id, t.movie_id, m.title, m.poster_url, t.price_cents, t.access_code, t.is_active, t.created_at
               FROM tickets t
               JOIN movies m ON m.id = t.movie_id
               WHERE t.client_id = ?
               ORDER BY t.created_at DESC, t.id DESC`
    rows, err := r.db.QueryContext(ctx, q, clientID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]TicketDetail, 0)
    for rows.Next() {
        var (
            d       TicketDetail
            poster  sql.NullString
            created time.Time
        )
        if err := rows.Scan(&d.ID, &d.MovieID, &d.MovieTitle, &poster, &d.PriceCents, &d.AccessCode, &d.IsActive, &created); err != nil {
            return nil, err
        }
        if poster.Valid {
            p := poster.String
            d.PosterURL = &p
        }
        d.CreatedAt = created.UTC().Format(time.RFC3339)
        out = append(out, d)
    }
    return out, rows.Err()
}

// Purchase buys a ticket for the movie at the given price and records a
// completed mock payment, both in one transaction.  When the client already
// holds an active ticket for the movie, that ticket is returned together
// with ErrConflict and nothing is written.
func (r *TicketRepo) Purchase(ctx context.Context, clientID, movieID uint64, priceCents uint32, method string) (model.Ticket, model.Payment, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return model.Ticket{}, model.Payment{}, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    // FOR UPDATE takes a gap lock on (client_id, movie_id) so a concurrent
    // purchase of the same movie waits for this one.
    var existing model.Ticket
    err = tx.QueryRowContext(ctx,
        `SELECT id, client_id, movie_id, price_cents, access_code, is_active, created_at
         FROM tickets WHERE client_id = ? AND movie_id = ? AND is_active = 1 LIMIT 1 FOR UPDATE`,
        clientID, movieID).Scan(&existing.ID, &existing.ClientID, &existing.MovieID, &existing.PriceCents,
        &existing.AccessCode, &existing.IsActive, &existing.CreatedAt)
    switch {
    case err == nil:
        return existing, model.Payment{}, ErrConflict
    case !errors.Is(err, sql.ErrNoRows):
        return model.Ticket{}, model.Payment{}, classify(err)
    }

    code, err := utils.RandomCode(8)
    if err != nil {
        return model.Ticket{}, model.Payment{}, err
    }
    t := model.Ticket{
        ClientID:   clientID,
        MovieID:    movieID,
        PriceCents: priceCents,
        AccessCode: "TKT-" + code,
        IsActive:   true,
        CreatedAt:  time.Now().UTC(),
    }
    res, err := tx.ExecContext(ctx,
        `INSERT INTO tickets (client_id, movie_id, price_cents, access_code, is_active, created_at) VALUES (?, ?, ?, ?, 1, ?)`,
        t.ClientID, t.MovieID, t.PriceCents, t.AccessCode, t.CreatedAt)
    if err != nil {
        return model.Ticket{}, model.Payment{}, classify(err)
    }
    id, err := res.LastInsertId()
    if err != nil {
        return model.Ticket{}, model.Payment{}, err
    }
    t.ID = uint64(id)

    p := model.Payment{
        TicketID:      t.ID,
        AmountCents:   priceCents,
        Method:        method,
        Status:        "completed",
        TransactionID: "TXN-" + uuid.NewString(),
        CreatedAt:     t.CreatedAt,
    }
    res, err = tx.ExecContext(ctx,
        `INSERT INTO payments (ticket_id, amount_cents, method, status, transaction_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
        p.TicketID, p.AmountCents, p.Method, p.Status, p.TransactionID, p.CreatedAt)
    if err != nil {
        return model.Ticket{}, model.Payment{}, classify(err)
    }
    if id, err := res.LastInsertId(); err == nil {
        p.ID = uint64(id)
    }

    if err := tx.Commit(); err != nil {
        return model.Ticket{}, model.Payment{}, classify(err)
    }
    committed = true
    return t, p, nil
}
