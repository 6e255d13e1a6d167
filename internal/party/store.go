package party

import (
	"context"

	"github.com/iliyamo/watch-party/internal/model"
	"github.com/iliyamo/watch-party/internal/queue"
	"github.com/iliyamo/watch-party/internal/repository"
)

// Tx is the set of statements a membership transition runs.  Every method
// executes inside one store transaction; LockParty must be called first so
// the rest of the transition sees a stable participant set.
//
// Implementations report a missing party as repository.ErrPartyNotFound and
// classify driver failures as repository.ErrDuplicate,
// repository.ErrMissingReference or repository.ErrTxConflict.
type Tx interface {
	LockParty(ctx context.Context, partyID uint64) (model.WatchParty, error)
	InsertParty(ctx context.Context, p *model.WatchParty) error
	ParticipantExists(ctx context.Context, partyID, clientID uint64) (bool, error)
	// HasActiveTicket runs on the transaction itself; a transition never
	// needs a second pooled connection while it holds the party lock.
	HasActiveTicket(ctx context.Context, clientID, movieID uint64) (bool, error)
	CountParticipants(ctx context.Context, partyID uint64) (int, error)
	InsertParticipant(ctx context.Context, p *model.Participant) error
	DeleteParticipant(ctx context.Context, partyID, clientID uint64) (bool, error)
	NextHost(ctx context.Context, partyID uint64, newestFirst bool) (uint64, error)
	UpdateHost(ctx context.Context, partyID, clientID uint64) error
	DeleteParty(ctx context.Context, partyID uint64) error
}

// Store opens transactions and resolves join codes.
type Store interface {
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	GetByCode(ctx context.Context, code string) (model.WatchParty, error)
}

// Entitlements answers whether a client holds an active ticket for a movie.
type Entitlements interface {
	HasActiveTicket(ctx context.Context, clientID, movieID uint64) (bool, error)
}

// Notifier receives membership events after the transaction has committed.
type Notifier interface {
	PublishPartyEvent(ctx context.Context, ev queue.PartyEvent) error
}

// sqlStore adapts repository.PartyRepo to Store.
type sqlStore struct {
	repo *repository.PartyRepo
}

// NewSQLStore returns a Store backed by MySQL through the party repository.
func NewSQLStore(repo *repository.PartyRepo) Store { return sqlStore{repo: repo} }

func (s sqlStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.repo.WithTx(ctx, func(tx *repository.PartyTx) error { return fn(tx) })
}

func (s sqlStore) GetByCode(ctx context.Context, code string) (model.WatchParty, error) {
	return s.repo.GetByCode(ctx, code)
}
