package party

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/watch-party/internal/model"
	"github.com/iliyamo/watch-party/internal/queue"
	"github.com/iliyamo/watch-party/internal/repository"
)

// memState is the committed content of memStore.
type memState struct {
	parties      map[uint64]model.WatchParty
	participants map[uint64][]model.Participant
	nextPartyID  uint64
	nextRowID    uint64
}

func (s memState) clone() memState {
	c := memState{
		parties:      make(map[uint64]model.WatchParty, len(s.parties)),
		participants: make(map[uint64][]model.Participant, len(s.participants)),
		nextPartyID:  s.nextPartyID,
		nextRowID:    s.nextRowID,
	}
	for id, p := range s.parties {
		c.parties[id] = p
	}
	for id, rows := range s.participants {
		c.participants[id] = append([]model.Participant(nil), rows...)
	}
	return c
}

// memStore is a transactional in-memory Store.  Transactions are fully
// serialised, work on a private copy and replace the committed state only
// when the callback succeeds.
type memStore struct {
	mu      sync.Mutex
	st      memState
	fail    map[string]error
	txs     int
	tickets *ticketBook
}

func newMemStore() *memStore {
	return &memStore{
		st: memState{
			parties:      map[uint64]model.WatchParty{},
			participants: map[uint64][]model.Participant{},
		},
		fail: map[string]error{},
	}
}

// failOn makes the named Tx method return err in every later transaction.
func (s *memStore) failOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[method] = err
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs++

	work := s.st.clone()
	if err := fn(&memTx{st: &work, fail: s.fail, tickets: s.tickets}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *memStore) GetByCode(_ context.Context, code string) (model.WatchParty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.st.parties {
		if p.JoinCode == code {
			return p, nil
		}
	}
	return model.WatchParty{}, repository.ErrPartyNotFound
}

// seed inserts a party with the given members; the first member is the host.
// Members join one second apart starting at t0.
func (s *memStore) seed(movieID uint64, max int, t0 time.Time, members ...uint64) model.WatchParty {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.nextPartyID++
	p := model.WatchParty{
		ID:              s.st.nextPartyID,
		HostID:          members[0],
		MovieID:         movieID,
		ScheduledTime:   t0.Add(24 * time.Hour),
		JoinCode:        "SEED" + string(rune('A'+s.st.nextPartyID)),
		Status:          model.PartyScheduled,
		MaxParticipants: max,
	}
	s.st.parties[p.ID] = p
	for i, c := range members {
		s.st.nextRowID++
		s.st.participants[p.ID] = append(s.st.participants[p.ID], model.Participant{
			ID: s.st.nextRowID, PartyID: p.ID, ClientID: c, JoinedAt: t0.Add(time.Duration(i) * time.Second),
		})
	}
	return p
}

func (s *memStore) party(id uint64) (model.WatchParty, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.parties[id]
	return p, ok
}

func (s *memStore) members(id uint64) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []uint64{}
	for _, r := range s.st.participants[id] {
		out = append(out, r.ClientID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *memStore) setStatus(id uint64, st model.PartyStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.st.parties[id]
	p.Status = st
	s.st.parties[id] = p
}

type memTx struct {
	st      *memState
	fail    map[string]error
	tickets *ticketBook
}

func (t *memTx) injected(method string) error { return t.fail[method] }

func (t *memTx) LockParty(_ context.Context, partyID uint64) (model.WatchParty, error) {
	if err := t.injected("LockParty"); err != nil {
		return model.WatchParty{}, err
	}
	p, ok := t.st.parties[partyID]
	if !ok {
		return model.WatchParty{}, repository.ErrPartyNotFound
	}
	return p, nil
}

func (t *memTx) InsertParty(_ context.Context, p *model.WatchParty) error {
	if err := t.injected("InsertParty"); err != nil {
		return err
	}
	for _, other := range t.st.parties {
		if other.JoinCode == p.JoinCode {
			return errors.Join(repository.ErrDuplicate, errors.New("Duplicate entry for key 'join_code'"))
		}
	}
	t.st.nextPartyID++
	p.ID = t.st.nextPartyID
	t.st.parties[p.ID] = *p
	return nil
}

func (t *memTx) ParticipantExists(_ context.Context, partyID, clientID uint64) (bool, error) {
	if err := t.injected("ParticipantExists"); err != nil {
		return false, err
	}
	for _, r := range t.st.participants[partyID] {
		if r.ClientID == clientID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) HasActiveTicket(ctx context.Context, clientID, movieID uint64) (bool, error) {
	if err := t.injected("HasActiveTicket"); err != nil {
		return false, err
	}
	return t.tickets.HasActiveTicket(ctx, clientID, movieID)
}

func (t *memTx) CountParticipants(_ context.Context, partyID uint64) (int, error) {
	if err := t.injected("CountParticipants"); err != nil {
		return 0, err
	}
	return len(t.st.participants[partyID]), nil
}

func (t *memTx) InsertParticipant(_ context.Context, p *model.Participant) error {
	if err := t.injected("InsertParticipant"); err != nil {
		return err
	}
	if _, ok := t.st.parties[p.PartyID]; !ok {
		return repository.ErrMissingReference
	}
	for _, r := range t.st.participants[p.PartyID] {
		if r.ClientID == p.ClientID {
			return repository.ErrDuplicate
		}
	}
	t.st.nextRowID++
	p.ID = t.st.nextRowID
	t.st.participants[p.PartyID] = append(t.st.participants[p.PartyID], *p)
	return nil
}

func (t *memTx) DeleteParticipant(_ context.Context, partyID, clientID uint64) (bool, error) {
	if err := t.injected("DeleteParticipant"); err != nil {
		return false, err
	}
	rows := t.st.participants[partyID]
	for i, r := range rows {
		if r.ClientID == clientID {
			t.st.participants[partyID] = append(rows[:i:i], rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) NextHost(_ context.Context, partyID uint64, newestFirst bool) (uint64, error) {
	if err := t.injected("NextHost"); err != nil {
		return 0, err
	}
	rows := append([]model.Participant(nil), t.st.participants[partyID]...)
	if len(rows) == 0 {
		return 0, repository.ErrPartyNotFound
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt) != newestFirst
		}
		return (a.ID < b.ID) != newestFirst
	})
	return rows[0].ClientID, nil
}

func (t *memTx) UpdateHost(_ context.Context, partyID, clientID uint64) error {
	if err := t.injected("UpdateHost"); err != nil {
		return err
	}
	p := t.st.parties[partyID]
	p.HostID = clientID
	t.st.parties[partyID] = p
	return nil
}

func (t *memTx) DeleteParty(_ context.Context, partyID uint64) error {
	if err := t.injected("DeleteParty"); err != nil {
		return err
	}
	delete(t.st.parties, partyID)
	delete(t.st.participants, partyID)
	return nil
}

// ticketBook is an Entitlements fake keyed by (client, movie).
type ticketBook struct {
	mu    sync.Mutex
	owned map[[2]uint64]bool
	err   error
}

func newTicketBook() *ticketBook { return &ticketBook{owned: map[[2]uint64]bool{}} }

func (b *ticketBook) grant(movieID uint64, clients ...uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range clients {
		b.owned[[2]uint64{c, movieID}] = true
	}
}

func (b *ticketBook) HasActiveTicket(_ context.Context, clientID, movieID uint64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return false, b.err
	}
	return b.owned[[2]uint64{clientID, movieID}], nil
}

// eventLog records published events.
type eventLog struct {
	mu     sync.Mutex
	events []queue.PartyEvent
	err    error
}

func (l *eventLog) PublishPartyEvent(_ context.Context, ev queue.PartyEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return l.err
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

// stepClock advances one second on every reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}
