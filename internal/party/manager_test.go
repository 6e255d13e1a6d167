package party

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/watch-party/internal/config"
	"github.com/iliyamo/watch-party/internal/model"
	"github.com/iliyamo/watch-party/internal/queue"
	"github.com/iliyamo/watch-party/internal/repository"
)

const (
	movie = uint64(42)
	alice = uint64(1)
	bob   = uint64(2)
	carol = uint64(3)
	dave  = uint64(4)
)

var t0 = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

type fixture struct {
	m       *Manager
	store   *memStore
	tickets *ticketBook
	events  *eventLog
	clock   *stepClock
}

func testConfig() config.PartyConfig {
	return config.PartyConfig{
		MinParticipants:     2,
		MaxParticipants:     100,
		DefaultParticipants: 50,
		ScheduleGrace:       time.Minute,
		Succession:          config.SuccessionLongestTenured,
		TxTimeout:           time.Second,
		JoinCodeLength:      8,
	}
}

func newFixture(t *testing.T, cfg config.PartyConfig) *fixture {
	t.Helper()
	f := &fixture{
		store:   newMemStore(),
		tickets: newTicketBook(),
		events:  &eventLog{},
		clock:   &stepClock{now: t0},
	}
	f.store.tickets = f.tickets
	f.m = NewManager(cfg, f.store, f.tickets, f.events)
	f.m.now = f.clock.Now
	return f
}

func TestCreateSeatsHostAsFirstParticipant(t *testing.T) {
	f := newFixture(t, testConfig())
	f.tickets.grant(movie, alice)

	p, err := f.m.Create(context.Background(), CreateRequest{
		HostID:          alice,
		MovieID:         movie,
		ScheduledTime:   t0.Add(2 * time.Hour),
		MaxParticipants: 10,
		Description:     "  Friday night  ",
	})
	require.NoError(t, err)

	assert.NotZero(t, p.ID)
	assert.Equal(t, alice, p.HostID)
	assert.Equal(t, model.PartyScheduled, p.Status)
	assert.Len(t, p.JoinCode, 8)
	require.NotNil(t, p.Description)
	assert.Equal(t, "Friday night", *p.Description)
	assert.Equal(t, []uint64{alice}, f.store.members(p.ID))
	assert.Equal(t, []string{queue.EventPartyCreated}, f.events.types())
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"past schedule", CreateRequest{ScheduledTime: t0.Add(-time.Hour), MaxParticipants: 10}, ErrInvalidSchedule},
		{"zero schedule", CreateRequest{MaxParticipants: 10}, ErrInvalidSchedule},
		{"capacity below minimum", CreateRequest{ScheduledTime: t0.Add(time.Hour), MaxParticipants: 1}, ErrInvalidCapacity},
		{"capacity above maximum", CreateRequest{ScheduledTime: t0.Add(time.Hour), MaxParticipants: 101}, ErrInvalidCapacity},
		{"malformed join code", CreateRequest{ScheduledTime: t0.Add(time.Hour), MaxParticipants: 10, JoinCode: "ab-12"}, ErrInvalidJoinCode},
		{"no ticket", CreateRequest{ScheduledTime: t0.Add(time.Hour), MaxParticipants: 10, HostID: dave}, ErrEntitlementMissing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, testConfig())
			f.tickets.grant(movie, alice)
			if tc.req.HostID == 0 {
				tc.req.HostID = alice
			}
			tc.req.MovieID = movie

			_, err := f.m.Create(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Zero(t, f.store.txs, "no transaction should be opened")
			assert.Empty(t, f.events.types())
		})
	}
}

func TestCreateAcceptsScheduleWithinGrace(t *testing.T) {
	f := newFixture(t, testConfig())
	f.tickets.grant(movie, alice)

	_, err := f.m.Create(context.Background(), CreateRequest{
		HostID: alice, MovieID: movie, ScheduledTime: t0.Add(-20 * time.Second), MaxParticipants: 2,
	})
	assert.NoError(t, err)
}

func TestCreateRegeneratesCollidingJoinCode(t *testing.T) {
	f := newFixture(t, testConfig())
	f.tickets.grant(movie, alice, bob)
	codes := []string{"AAAAAAAA", "AAAAAAAA", "BBBBBBBB"}
	f.m.newCode = func(int) (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	first, err := f.m.Create(context.Background(), CreateRequest{HostID: alice, MovieID: movie, ScheduledTime: t0.Add(time.Hour), MaxParticipants: 5})
	require.NoError(t, err)
	second, err := f.m.Create(context.Background(), CreateRequest{HostID: bob, MovieID: movie, ScheduledTime: t0.Add(time.Hour), MaxParticipants: 5})
	require.NoError(t, err)

	assert.Equal(t, "AAAAAAAA", first.JoinCode)
	assert.Equal(t, "BBBBBBBB", second.JoinCode)
	assert.Equal(t, []uint64{bob}, f.store.members(second.ID))
}

func TestCreateWithTakenCustomCode(t *testing.T) {
	f := newFixture(t, testConfig())
	f.tickets.grant(movie, alice, bob)

	_, err := f.m.Create(context.Background(), CreateRequest{HostID: alice, MovieID: movie, ScheduledTime: t0.Add(time.Hour), MaxParticipants: 5, JoinCode: "movie1"})
	require.NoError(t, err)
	_, err = f.m.Create(context.Background(), CreateRequest{HostID: bob, MovieID: movie, ScheduledTime: t0.Add(time.Hour), MaxParticipants: 5, JoinCode: "MOVIE1"})
	assert.ErrorIs(t, err, ErrJoinCodeTaken)
}

func TestCreateRollsBackWhenHostInsertFails(t *testing.T) {
	f := newFixture(t, testConfig())
	f.tickets.grant(movie, alice)
	f.store.failOn("InsertParticipant", repository.ErrMissingReference)

	_, err := f.m.Create(context.Background(), CreateRequest{HostID: alice, MovieID: movie, ScheduledTime: t0.Add(time.Hour), MaxParticipants: 5})
	assert.ErrorIs(t, err, ErrEntitlementMissing)
	_, ok := f.store.party(1)
	assert.False(t, ok, "party insert must be rolled back")
}

// Scenario A: a non-host leaves.
func TestLeaveNonHost(t *testing.T) {
	f := newFixture(t, testConfig())
	p := f.store.seed(movie, 10, t0, alice, bob)

	res, err := f.m.Leave(context.Background(), p.ID, bob)
	require.NoError(t, err)

	assert.Equal(t, LeaveResult{PartyDeleted: false, WasHost: false}, res)
	got, ok := f.store.party(p.ID)
	require.True(t, ok)
	assert.Equal(t, alice, got.HostID)
	assert.Equal(t, []uint64{alice}, f.store.members(p.ID))
	assert.Equal(t, []string{queue.EventPartyLeft}, f.events.types())
}

// Scenario B: the host leaves and host duty moves on.
func TestLeaveHostTransfersToLongestTenured(t *testing.T) {
	f := newFixture(t, testConfig())
	p := f.store.seed(movie, 10, t0, alice, bob, carol)

	res, err := f.m.Leave(context.Background(), p.ID, alice)
	require.NoError(t, err)

	assert.Equal(t, LeaveResult{WasHost: true, NewHostID: bob}, res)
	got, _ := f.store.party(p.ID)
	assert.Equal(t, bob, got.HostID)
	assert.Equal(t, []uint64{bob, carol}, f.store.members(p.ID))
	assert.Equal(t, []string{queue.EventPartyLeft, queue.EventHostTransferred}, f.events.types())
}

func TestLeaveHostTransfersToMostRecent(t *testing.T) {
	cfg := testConfig()
	cfg.Succession = config.SuccessionMostRecent
	f := newFixture(t, cfg)
	p := f.store.seed(movie, 10, t0, alice, bob, carol)

	res, err := f.m.Leave(context.Background(), p.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, carol, res.NewHostID)
}

// Scenario C: the last participant leaves.
func TestLeaveLastParticipantDeletesParty(t *testing.T) {
	f := newFixture(t, testConfig())
	p := f.store.seed(movie, 10, t0, alice)

	res, err := f.m.Leave(context.Background(), p.ID, alice)
	require.NoError(t, err)

	assert.True(t, res.PartyDeleted)
	assert.Zero(t, res.NewHostID)
	_, ok := f.store.party(p.ID)
	assert.False(t, ok)
	assert.Equal(t, []string{queue.EventPartyLeft, queue.EventPartyDeleted}, f.events.types())
}

func TestOperationsOnDeletedPartyFailNotFound(t *testing.T) {
	f := newFixture(t, testConfig())
	f.tickets.grant(movie, alice, bob)
	p := f.store.seed(movie, 10, t0, alice)

	_, err := f.m.Leave(context.Background(), p.ID, alice)
	require.NoError(t, err)

	_, err = f.m.Join(context.Background(), p.ID, bob)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.m.Leave(context.Background(), p.ID, alice)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLeaveWithoutMembership(t *testing.T) {
	f := newFixture(t, testConfig())
	p := f.store.seed(movie, 10, t0, alice)

	_, err := f.m.Leave(context.Background(), p.ID, bob)
	assert.ErrorIs(t, err, ErrNotAParticipant)
	assert.Equal(t, []uint64{alice}, f.store.members(p.ID))
	assert.Empty(t, f.events.types())
}

// Scenario D: joining without a ticket.
func TestJoinWithoutTicket(t *testing.T) {
	f := newFixture(t, testConfig())
	p := f.store.seed(movie, 10, t0, alice)

	_, err := f.m.Join(context.Background(), p.ID, dave)
	assert.ErrorIs(t, err, ErrEntitlementMissing)
	assert.Equal(t, []uint64{alice}, f.store.members(p.ID))
}

// Scenario E: joining twice.
func TestJoinIsIdempotent(t *testing.T) {
	f := newFixture(t, testConfig())
	f.tickets.grant(movie, alice, bob)
	p := f.store.seed(movie, 10, t0, alice)

	res, err := f.m.Join(context.Background(), p.ID, bob)
	require.NoError(t, err)
	assert.False(t, res.AlreadyMember)

	res, err = f.m.Join(context.Background(), p.ID, bob)
	require.NoError(t, err)
	assert.True(t, res.AlreadyMember)

	res, err = f.m.Join(context.Background(), p.ID, alice)
	require.NoError(t, err)
	assert.True(t, res.AlreadyMember)

	assert.Equal(t, []uint64{alice, bob}, f.store.members(p.ID))
	assert.Equal(t, []string{queue.EventPartyJoined}, f.events.types())
}

func TestJoinFullOrClosedParty(t *testing.T) {
	f := newFixture(t, testConfig())
	f.tickets.grant(movie, alice, bob, carol)
	full := f.store.seed(movie, 2, t0, alice, bob)
	closed := f.store.seed(movie, 10, t0, alice)
	f.store.setStatus(closed.ID, model.PartyCompleted)

	_, err := f.m.Join(context.Background(), full.ID, carol)
	assert.ErrorIs(t, err, ErrPartyFull)

	_, err = f.m.Join(context.Background(), closed.ID, carol)
	assert.ErrorIs(t, err, ErrPartyClosed)

	// Existing members are still confirmed.
	res, err := f.m.Join(context.Background(), full.ID, bob)
	require.NoError(t, err)
	assert.True(t, res.AlreadyMember)
}

func TestJoinByCode(t *testing.T) {
	f := newFixture(t, testConfig())
	f.tickets.grant(movie, alice, bob)
	f.m.newCode = func(int) (string, error) { return "K3X9Q0ZD", nil }
	p, err := f.m.Create(context.Background(), CreateRequest{HostID: alice, MovieID: movie, ScheduledTime: t0.Add(time.Hour), MaxParticipants: 5})
	require.NoError(t, err)

	res, err := f.m.JoinByCode(context.Background(), " k3x9q0zd ", bob)
	require.NoError(t, err)
	assert.Equal(t, p.ID, res.Party.ID)

	_, err = f.m.JoinByCode(context.Background(), "ZZZZZZZZ", bob)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.m.JoinByCode(context.Background(), "no!", bob)
	assert.ErrorIs(t, err, ErrInvalidJoinCode)
}

func TestLeaveFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, testConfig())
	p := f.store.seed(movie, 10, t0, alice, bob)
	boom := errors.New("connection reset")
	f.store.failOn("UpdateHost", boom)

	_, err := f.m.Leave(context.Background(), p.ID, alice)
	assert.ErrorIs(t, err, boom)

	got, _ := f.store.party(p.ID)
	assert.Equal(t, alice, got.HostID)
	assert.Equal(t, []uint64{alice, bob}, f.store.members(p.ID))
	assert.Empty(t, f.events.types())
}

func TestStoreConflictIsRetryable(t *testing.T) {
	f := newFixture(t, testConfig())
	p := f.store.seed(movie, 10, t0, alice, bob)
	f.store.failOn("LockParty", errors.Join(repository.ErrTxConflict, errors.New("Deadlock found when trying to get lock")))

	_, err := f.m.Leave(context.Background(), p.ID, bob)
	assert.ErrorIs(t, err, ErrTransactionConflict)
}

func TestPublishFailureDoesNotFailLeave(t *testing.T) {
	f := newFixture(t, testConfig())
	f.events.err = errors.New("broker down")
	p := f.store.seed(movie, 10, t0, alice, bob)

	res, err := f.m.Leave(context.Background(), p.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, bob, res.NewHostID)
}

func TestHostSuccessionChain(t *testing.T) {
	f := newFixture(t, testConfig())
	p := f.store.seed(movie, 10, t0, alice, bob, carol, dave)

	for _, want := range []uint64{bob, carol, dave} {
		cur, _ := f.store.party(p.ID)
		res, err := f.m.Leave(context.Background(), p.ID, cur.HostID)
		require.NoError(t, err)
		assert.Equal(t, want, res.NewHostID)
	}
	res, err := f.m.Leave(context.Background(), p.ID, dave)
	require.NoError(t, err)
	assert.True(t, res.PartyDeleted)
}

// A random sequence of joins and leaves must leave exactly the clients whose
// last successful call was a join, and the host must always be one of them.
func TestMembershipMatchesModel(t *testing.T) {
	f := newFixture(t, testConfig())
	clients := []uint64{alice, bob, carol, dave, 5, 6}
	f.tickets.grant(movie, clients...)
	p := f.store.seed(movie, 100, t0, alice)

	inParty := map[uint64]bool{alice: true}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 300; i++ {
		c := clients[rng.Intn(len(clients))]
		if _, exists := f.store.party(p.ID); !exists {
			break
		}
		if rng.Intn(2) == 0 {
			_, err := f.m.Join(context.Background(), p.ID, c)
			require.NoError(t, err)
			inParty[c] = true
		} else {
			_, err := f.m.Leave(context.Background(), p.ID, c)
			if inParty[c] {
				require.NoError(t, err)
				delete(inParty, c)
			} else {
				require.ErrorIs(t, err, ErrNotAParticipant)
			}
		}

		got, exists := f.store.party(p.ID)
		if len(inParty) == 0 {
			require.False(t, exists, "empty party must be deleted (step %d)", i)
			continue
		}
		require.True(t, exists)
		require.True(t, inParty[got.HostID], "host %d is not a member (step %d)", got.HostID, i)
		require.Len(t, f.store.members(p.ID), len(inParty))
	}
}

func TestConcurrentLeavesKeepHostValid(t *testing.T) {
	f := newFixture(t, testConfig())
	members := make([]uint64, 0, 20)
	for c := uint64(1); c <= 20; c++ {
		members = append(members, c)
	}
	p := f.store.seed(movie, 20, t0, members...)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		deleted int
		errs    []error
	)
	for _, c := range members {
		wg.Add(1)
		go func(c uint64) {
			defer wg.Done()
			res, err := f.m.Leave(context.Background(), p.ID, c)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("client %d: %w", c, err))
				return
			}
			if res.PartyDeleted {
				deleted++
			}
		}(c)
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Equal(t, 1, deleted, "exactly one leave deletes the party")
	_, ok := f.store.party(p.ID)
	assert.False(t, ok)
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	f := newFixture(t, testConfig())
	p := f.store.seed(movie, 5, t0, alice)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		full int
	)
	for c := uint64(100); c < 120; c++ {
		f.tickets.grant(movie, c)
		wg.Add(1)
		go func(c uint64) {
			defer wg.Done()
			_, err := f.m.Join(context.Background(), p.ID, c)
			if errors.Is(err, ErrPartyFull) {
				mu.Lock()
				full++
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	assert.Len(t, f.store.members(p.ID), 5)
	assert.Equal(t, 16, full)
}

func TestNotFoundNamesTheParty(t *testing.T) {
	f := newFixture(t, testConfig())
	f.tickets.grant(movie, bob)

	_, err := f.m.Join(context.Background(), 99, bob)
	require.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "party not found: id 99")

	_, err = f.m.Leave(context.Background(), 99, bob)
	assert.EqualError(t, err, "party not found: id 99")

	_, err = f.m.JoinByCode(context.Background(), "NOPE1234", bob)
	assert.Equal(t, ErrNotFound, err)
}
