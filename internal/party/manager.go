// Package party implements watch party membership: creating a party, joining
// and leaving it, host succession when the host leaves and deletion when the
// last participant leaves.  Every transition runs inside a single store
// transaction that starts by locking the party row, so at most one
// transition per party is in flight and a party is never observed without a
// host or without participants.
package party

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/watch-party/internal/config"
	"github.com/iliyamo/watch-party/internal/metrics"
	"github.com/iliyamo/watch-party/internal/model"
	"github.com/iliyamo/watch-party/internal/queue"
	"github.com/iliyamo/watch-party/internal/repository"
	"github.com/iliyamo/watch-party/internal/utils"
)

// maxCodeAttempts bounds join code regeneration on unique key collisions.
const maxCodeAttempts = 5

// Manager coordinates membership transitions.  It is safe for concurrent use.
type Manager struct {
	cfg     config.PartyConfig
	store   Store
	tickets Entitlements
	events  Notifier

	now     func() time.Time
	newCode func(n int) (string, error)
}

// NewManager wires a Manager.  events may be nil, in which case no events
// are published.
func NewManager(cfg config.PartyConfig, store Store, tickets Entitlements, events Notifier) *Manager {
	return &Manager{
		cfg:     cfg,
		store:   store,
		tickets: tickets,
		events:  events,
		now:     time.Now,
		newCode: utils.RandomCode,
	}
}

// CreateRequest describes a party to create.  JoinCode is optional; an empty
// value makes the manager generate one.
type CreateRequest struct {
	HostID          uint64
	MovieID         uint64
	ScheduledTime   time.Time
	MaxParticipants int
	Description     string
	JoinCode        string
}

// JoinResult is returned by Join and JoinByCode.
type JoinResult struct {
	Party         model.WatchParty `json:"party"`
	AlreadyMember bool             `json:"already_member"`
}

// LeaveResult tells the caller what happened to the party.  NewHostID is
// set only when host duty moved to another participant.
type LeaveResult struct {
	PartyDeleted bool   `json:"party_deleted"`
	WasHost      bool   `json:"was_host"`
	NewHostID    uint64 `json:"new_host_id,omitempty"`
}

// Create validates req, checks the host's ticket and inserts the party with
// the host as its first participant in one transaction.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (p model.WatchParty, err error) {
	started := m.now()
	defer func() { m.observe("create", started, err) }()

	now := started.UTC()
	if req.ScheduledTime.IsZero() || req.ScheduledTime.Before(now.Add(-m.cfg.ScheduleGrace)) {
		return model.WatchParty{}, ErrInvalidSchedule
	}
	if req.MaxParticipants < m.cfg.MinParticipants || req.MaxParticipants > m.cfg.MaxParticipants {
		return model.WatchParty{}, fmt.Errorf("%w: must be between %d and %d",
			ErrInvalidCapacity, m.cfg.MinParticipants, m.cfg.MaxParticipants)
	}
	code := strings.ToUpper(strings.TrimSpace(req.JoinCode))
	if code != "" && (len(code) < 4 || len(code) > 16 || !utils.IsCode(code)) {
		return model.WatchParty{}, ErrInvalidJoinCode
	}
	if err := m.checkEntitlement(ctx, req.HostID, req.MovieID); err != nil {
		return model.WatchParty{}, err
	}

	var desc *string
	if d := strings.TrimSpace(req.Description); d != "" {
		desc = &d
	}

	for attempt := 1; ; attempt++ {
		c := code
		if c == "" {
			if c, err = m.newCode(m.cfg.JoinCodeLength); err != nil {
				return model.WatchParty{}, fmt.Errorf("generate join code: %w", err)
			}
		}
		p = model.WatchParty{
			HostID:          req.HostID,
			MovieID:         req.MovieID,
			ScheduledTime:   req.ScheduledTime.UTC(),
			JoinCode:        c,
			Status:          model.PartyScheduled,
			MaxParticipants: req.MaxParticipants,
			Description:     desc,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		err = m.inTx(ctx, func(tx Tx) error {
			if err := tx.InsertParty(ctx, &p); err != nil {
				return err
			}
			return tx.InsertParticipant(ctx, &model.Participant{PartyID: p.ID, ClientID: req.HostID, JoinedAt: now})
		})
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return model.WatchParty{}, m.translate(err, 0)
		}
		if code != "" {
			return model.WatchParty{}, ErrJoinCodeTaken
		}
		if attempt >= maxCodeAttempts {
			return model.WatchParty{}, fmt.Errorf("%w: no free join code after %d attempts", ErrTransactionConflict, attempt)
		}
	}

	ev := queue.NewPartyEvent(queue.EventPartyCreated, p.ID, p.HostID, now)
	ev.MovieID = p.MovieID
	ev.HostID = p.HostID
	m.publish(ev)
	return p, nil
}

// Join seats clientID in the party.  Joining a party the client is already
// in succeeds without changes and reports AlreadyMember.
func (m *Manager) Join(ctx context.Context, partyID, clientID uint64) (res JoinResult, err error) {
	started := m.now()
	defer func() { m.observe("join", started, err) }()

	err = m.inTx(ctx, func(tx Tx) error {
		p, err := tx.LockParty(ctx, partyID)
		if err != nil {
			return err
		}
		res.Party = p
		if err := entitled(tx.HasActiveTicket(ctx, clientID, p.MovieID)); err != nil {
			return err
		}
		member, err := tx.ParticipantExists(ctx, partyID, clientID)
		if err != nil {
			return err
		}
		if member {
			res.AlreadyMember = true
			return nil
		}
		if !p.Status.Open() {
			return ErrPartyClosed
		}
		n, err := tx.CountParticipants(ctx, partyID)
		if err != nil {
			return err
		}
		if n >= p.MaxParticipants {
			return ErrPartyFull
		}
		err = tx.InsertParticipant(ctx, &model.Participant{PartyID: partyID, ClientID: clientID, JoinedAt: m.now().UTC()})
		if errors.Is(err, repository.ErrDuplicate) {
			res.AlreadyMember = true
			return nil
		}
		if errors.Is(err, repository.ErrMissingReference) {
			return ErrEntitlementMissing
		}
		return err
	})
	if err != nil {
		return JoinResult{}, m.translate(err, partyID)
	}
	if !res.AlreadyMember {
		ev := queue.NewPartyEvent(queue.EventPartyJoined, partyID, clientID, m.now())
		ev.MovieID = res.Party.MovieID
		m.publish(ev)
	}
	return res, nil
}

// JoinByCode resolves a join code (case-insensitive) and joins that party.
func (m *Manager) JoinByCode(ctx context.Context, code string, clientID uint64) (JoinResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || !utils.IsCode(code) {
		return JoinResult{}, ErrInvalidJoinCode
	}
	p, err := m.store.GetByCode(ctx, code)
	if err != nil {
		return JoinResult{}, m.translate(err, 0)
	}
	return m.Join(ctx, p.ID, clientID)
}

// Leave removes clientID from the party.  When nobody is left the party is
// deleted; otherwise, if the leaver was the host, the next host is chosen by
// the configured succession policy.
func (m *Manager) Leave(ctx context.Context, partyID, clientID uint64) (res LeaveResult, err error) {
	started := m.now()
	defer func() { m.observe("leave", started, err) }()

	newestFirst := m.cfg.Succession == config.SuccessionMostRecent
	err = m.inTx(ctx, func(tx Tx) error {
		p, err := tx.LockParty(ctx, partyID)
		if err != nil {
			return err
		}
		removed, err := tx.DeleteParticipant(ctx, partyID, clientID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrNotAParticipant
		}
		res.WasHost = p.HostID == clientID

		left, err := tx.CountParticipants(ctx, partyID)
		if err != nil {
			return err
		}
		if left == 0 {
			res.PartyDeleted = true
			return tx.DeleteParty(ctx, partyID)
		}
		if !res.WasHost {
			return nil
		}
		next, err := tx.NextHost(ctx, partyID, newestFirst)
		if err != nil {
			return err
		}
		if err := tx.UpdateHost(ctx, partyID, next); err != nil {
			return err
		}
		res.NewHostID = next
		return nil
	})
	if err != nil {
		return LeaveResult{}, m.translate(err, partyID)
	}

	at := m.now()
	m.publish(queue.NewPartyEvent(queue.EventPartyLeft, partyID, clientID, at))
	switch {
	case res.PartyDeleted:
		metrics.PartyDeleted()
		m.publish(queue.NewPartyEvent(queue.EventPartyDeleted, partyID, clientID, at))
	case res.NewHostID != 0:
		metrics.HostTransferred()
		ev := queue.NewPartyEvent(queue.EventHostTransferred, partyID, clientID, at)
		ev.HostID = res.NewHostID
		m.publish(ev)
	}
	return res, nil
}

// inTx runs fn in a store transaction bounded by the configured timeout.
func (m *Manager) inTx(ctx context.Context, fn func(tx Tx) error) error {
	if m.cfg.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.TxTimeout)
		defer cancel()
	}
	return m.store.WithinTx(ctx, fn)
}

func (m *Manager) checkEntitlement(ctx context.Context, clientID, movieID uint64) error {
	return entitled(m.tickets.HasActiveTicket(ctx, clientID, movieID))
}

func entitled(ok bool, err error) error {
	if err != nil {
		return fmt.Errorf("check ticket: %w", err)
	}
	if !ok {
		return ErrEntitlementMissing
	}
	return nil
}

// translate maps store failures onto the package's error kinds.  Errors that
// already are kinds pass through untouched.
func (m *Manager) translate(err error, partyID uint64) error {
	switch {
	case errors.Is(err, repository.ErrPartyNotFound):
		if partyID == 0 {
			return ErrNotFound
		}
		return fmt.Errorf("%w: id %d", ErrNotFound, partyID)
	case errors.Is(err, repository.ErrTxConflict):
		return fmt.Errorf("%w: %v", ErrTransactionConflict, err)
	case errors.Is(err, repository.ErrMissingReference):
		return ErrEntitlementMissing
	}
	return err
}

func (m *Manager) publish(ev queue.PartyEvent) {
	if m.events == nil {
		return
	}
	// Publishing happens after commit; a broker outage must not fail the call.
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := m.events.PublishPartyEvent(ctx, ev); err != nil {
		metrics.EventPublishFailed()
		log.Printf("party: publish %s for party %d failed: %v", ev.Type, ev.PartyID, err)
	}
}

func (m *Manager) observe(op string, started time.Time, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, ErrTransactionConflict):
		outcome = metrics.OutcomeConflict
	case isKind(err):
		outcome = metrics.OutcomeRejected
	default:
		outcome = metrics.OutcomeError
		log.Printf("party: %s failed: %v", op, err)
	}
	metrics.ObserveMembership(op, outcome, m.now().Sub(started))
}

func isKind(err error) bool {
	for _, k := range []error{ErrNotFound, ErrNotAParticipant, ErrEntitlementMissing, ErrInvalidSchedule,
		ErrInvalidCapacity, ErrPartyFull, ErrPartyClosed, ErrInvalidJoinCode, ErrJoinCodeTaken} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}
