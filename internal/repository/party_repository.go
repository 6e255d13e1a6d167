// Package repository contains data access logic for watch parties.  This
// file defines the party repository and the transaction handle used by the
// membership service.  Every membership transition runs inside one
// PartyTx that first locks the party row, so two transitions for the same
// party are serialised by MySQL while different parties never contend.
package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/iliyamo/watch-party/internal/model"
)

// ErrPartyNotFound indicates that a watch party was not located in the DB.
var ErrPartyNotFound = errors.New("party not found")

// partyColumns lists the watch_parties columns in the order scanParty expects.
const partyColumns = `id, host_id, movie_id, scheduled_time, join_code, status, max_participants, description, created_at, updated_at`

// PartyRepo manages persistence for watch parties and their participants.
type PartyRepo struct {
    db *sql.DB
}

// NewPartyRepo returns a new PartyRepo bound to the provided database.
func NewPartyRepo(db *sql.DB) *PartyRepo { return &PartyRepo{db: db} }

// DB exposes the underlying sql.DB.
func (r *PartyRepo) DB() *sql.DB { return r.db }

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...any) error
}

func scanParty(s rowScanner) (model.WatchParty, error) {
    var (
        p      model.WatchParty
        status string
        desc   sql.NullString
    )
    err := s.Scan(&p.ID, &p.HostID, &p.MovieID, &p.ScheduledTime, &p.JoinCode, &status,
        &p.MaxParticipants, &desc, &p.CreatedAt, &p.UpdatedAt)
    if err != nil {
        return model.WatchParty{}, err
    }
    p.Status = model.PartyStatus(status)
    if desc.Valid {
        d := desc.String
        p.Description = &d
    }
    return p, nil
}

// WithTx runs fn inside a READ COMMITTED transaction and commits when fn
// returns nil.  Any error from fn, or a failed commit, rolls the whole
// transaction back so no partial membership change is ever visible.
func (r *PartyRepo) WithTx(ctx context.Context, fn func(tx *PartyTx) error) error {
    tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
    if err != nil {
        return fmt.Errorf("begin party tx: %w", classify(err))
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if err := fn(&PartyTx{tx: tx}); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return fmt.Errorf("commit party tx: %w", classify(err))
    }
    committed = true
    return nil
}

// PartyTx wraps a *sql.Tx with the statements needed by membership
// transitions.  It is only valid inside the WithTx callback that created it.
type PartyTx struct {
    tx *sql.Tx
}

// LockParty reads the party row with SELECT ... FOR UPDATE.  The lock is held
// until the surrounding transaction ends.
func (t *PartyTx) LockParty(ctx context.Context, partyID uint64) (model.WatchParty, error) {
    row := t.tx.QueryRowContext(ctx, `SELECT `+partyColumns+` FROM watch_parties WHERE id = ? FOR UPDATE`, partyID)
    p, err := scanParty(row)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return model.WatchParty{}, ErrPartyNotFound
        }
        return model.WatchParty{}, classify(err)
    }
    return p, nil
}

// InsertParty inserts a new party and populates its generated ID.
func (t *PartyTx) InsertParty(ctx context.Context, p *model.WatchParty) error {
    const q = `INSERT INTO watch_parties (host_id, movie_id, scheduled_time, join_code, status, max_participants, description)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
    res, err := t.tx.ExecContext(ctx, q, p.HostID, p.MovieID, p.ScheduledTime.UTC(), p.JoinCode,
        string(p.Status), p.MaxParticipants, p.Description)
    if err != nil {
        return classify(err)
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    p.ID = uint64(id)
    return nil
}

// ParticipantExists reports whether clientID currently has a row in the party.
func (t *PartyTx) ParticipantExists(ctx context.Context, partyID, clientID uint64) (bool, error) {
    var one int
    err := t.tx.QueryRowContext(ctx,
        `SELECT 1 FROM party_participants WHERE party_id = ? AND client_id = ? LIMIT 1`,
        partyID, clientID).Scan(&one)
    if errors.Is(err, sql.ErrNoRows) {
        return false, nil
    }
    if err != nil {
        return false, classify(err)
    }
    return true, nil
}

// CountParticipants returns the number of participant rows for the party.
func (t *PartyTx) CountParticipants(ctx context.Context, partyID uint64) (int, error) {
    var n int
    if err := t.tx.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM party_participants WHERE party_id = ?`, partyID).Scan(&n); err != nil {
        return 0, classify(err)
    }
    return n, nil
}

// HasActiveTicket checks the client's ticket on the transaction's own
// connection.
func (t *PartyTx) HasActiveTicket(ctx context.Context, clientID, movieID uint64) (bool, error) {
    return hasActiveTicket(ctx, t.tx, clientID, movieID)
}

// InsertParticipant seats a client in a party.  A duplicate (party, client)
// pair surfaces as ErrDuplicate and an unknown client or party as
// ErrMissingReference.
func (t *PartyTx) InsertParticipant(ctx context.Context, p *model.Participant) error {
    res, err := t.tx.ExecContext(ctx,
        `INSERT INTO party_participants (party_id, client_id, joined_at) VALUES (?, ?, ?)`,
        p.PartyID, p.ClientID, p.JoinedAt.UTC())
    if err != nil {
        return classify(err)
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    p.ID = uint64(id)
    return nil
}

// DeleteParticipant removes the (party, client) row and reports whether a row
// was actually deleted.
func (t *PartyTx) DeleteParticipant(ctx context.Context, partyID, clientID uint64) (bool, error) {
    res, err := t.tx.ExecContext(ctx,
        `DELETE FROM party_participants WHERE party_id = ? AND client_id = ?`, partyID, clientID)
    if err != nil {
        return false, classify(err)
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// NextHost picks the client that inherits the party.  With newestFirst false
// the earliest joined_at wins; otherwise the latest.  Ties fall back to the
// participant row id in the same direction.
func (t *PartyTx) NextHost(ctx context.Context, partyID uint64, newestFirst bool) (uint64, error) {
    q := `SELECT client_id FROM party_participants WHERE party_id = ? ORDER BY joined_at ASC, id ASC LIMIT 1`
    if newestFirst {
        q = `SELECT client_id FROM party_participants WHERE party_id = ? ORDER BY joined_at DESC, id DESC LIMIT 1`
    }
    var clientID uint64
    if err := t.tx.QueryRowContext(ctx, q, partyID).Scan(&clientID); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return 0, ErrPartyNotFound
        }
        return 0, classify(err)
    }
    return clientID, nil
}

// UpdateHost reassigns the party to clientID.
func (t *PartyTx) UpdateHost(ctx context.Context, partyID, clientID uint64) error {
    _, err := t.tx.ExecContext(ctx, `UPDATE watch_parties SET host_id = ? WHERE id = ?`, clientID, partyID)
    return classify(err)
}

// DeleteParty removes the party row.  party_participants rows go with it via
// ON DELETE CASCADE.
func (t *PartyTx) DeleteParty(ctx context.Context, partyID uint64) error {
    _, err := t.tx.ExecContext(ctx, `DELETE FROM watch_parties WHERE id = ?`, partyID)
    return classify(err)
}

// GetByID fetches a party without locking it.
func (r *PartyRepo) GetByID(ctx context.Context, id uint64) (model.WatchParty, error) {
    p, err := scanParty(r.db.QueryRowContext(ctx, `SELECT `+partyColumns+` FROM watch_parties WHERE id = ?`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return model.WatchParty{}, ErrPartyNotFound
    }
    return p, err
}

// GetByCode fetches a party by its join code.  Codes are stored upper case.
func (r *PartyRepo) GetByCode(ctx context.Context, code string) (model.WatchParty, error) {
    p, err := scanParty(r.db.QueryRowContext(ctx, `SELECT `+partyColumns+` FROM watch_parties WHERE join_code = ?`, code))
    if errors.Is(err, sql.ErrNoRows) {
        return model.WatchParty{}, ErrPartyNotFound
    }
    return p, err
}

// ParticipantRow is a participant joined with the client's display name.
type ParticipantRow struct {
    ClientID uint64 `json:"client_id"`
    Name     string `json:"name"`
    JoinedAt string `json:"joined_at"`
    IsHost   bool   `json:"is_host"`
}

// ListParticipants returns a party's members ordered by join time, which is
// also the host succession order.
func (r *PartyRepo) ListParticipants(ctx context.Context, partyID uint64) ([]ParticipantRow, error) {
    const q = `SELECT pp.client_id, u.name, pp.joined_at, (wp.host_id = pp.client_id)
               FROM party_participants pp
               JOIN users u ON u.id = pp.client_id
               JOIN watch_parties wp ON wp.id = pp.party_id
               WHERE pp.party_id = ?
               ORDER BY pp.joined_at ASC, pp.id ASC`
    rows, err := r.db.QueryContext(ctx, q, partyID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]ParticipantRow, 0)
    for rows.Next() {
        var (
            p        ParticipantRow
            joinedAt sql.NullTime
        )
        if err := rows.Scan(&p.ClientID, &p.Name, &joinedAt, &p.IsHost); err != nil {
            return nil, err
        }
        if joinedAt.Valid {
            p.JoinedAt = joinedAt.Time.UTC().Format(rfc3339Milli)
        }
        out = append(out, p)
    }
    return out, rows.Err()
}

// SetStatus changes a party's lifecycle status.  Setting the status it
// already has is not an error.
func (r *PartyRepo) SetStatus(ctx context.Context, id uint64, status model.PartyStatus) error {
    res, err := r.db.ExecContext(ctx, `UPDATE watch_parties SET status = ? WHERE id = ?`, string(status), id)
    if err != nil {
        return classify(err)
    }
    if n, _ := res.RowsAffected(); n > 0 {
        return nil
    }
    // MySQL reports 0 affected rows for an unchanged value; tell that apart
    // from a missing party.
    if _, err := r.GetByID(ctx, id); err != nil {
        return err
    }
    return nil
}

// Delete removes a party and, through the cascade, all of its participants.
func (r *PartyRepo) Delete(ctx context.Context, id uint64) error {
    res, err := r.db.ExecContext(ctx, `DELETE FROM watch_parties WHERE id = ?`, id)
    if err != nil {
        return classify(err)
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrPartyNotFound
    }
    return nil
}
