package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/watch-party/internal/middleware"
	"github.com/iliyamo/watch-party/internal/model"
	"github.com/iliyamo/watch-party/internal/repository"
)

type fakeAdminParties struct {
	statuses map[uint64]model.PartyStatus
	rows     []repository.AdminPartyRow
	err      error
}

func (f *fakeAdminParties) ListAllForAdmin(context.Context) ([]repository.AdminPartyRow, error) {
	return f.rows, f.err
}

func (f *fakeAdminParties) SetStatus(_ context.Context, id uint64, st model.PartyStatus) error {
	if _, ok := f.statuses[id]; !ok {
		return repository.ErrPartyNotFound
	}
	f.statuses[id] = st
	return nil
}

func (f *fakeAdminParties) Delete(_ context.Context, id uint64) error {
	if _, ok := f.statuses[id]; !ok {
		return repository.ErrPartyNotFound
	}
	delete(f.statuses, id)
	return nil
}

type fakeReviews struct {
	rows    map[[2]uint64]repository.ReviewRow
	listErr error
}

func (f *fakeReviews) ListReviews(context.Context) ([]repository.ReviewRow, error) {
	out := make([]repository.ReviewRow, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r)
	}
	return out, f.listErr
}

func (f *fakeReviews) DeleteRating(_ context.Context, clientID, movieID uint64) error {
	key := [2]uint64{clientID, movieID}
	if _, ok := f.rows[key]; !ok {
		return repository.ErrRatingNotFound
	}
	delete(f.rows, key)
	return nil
}

type fakeUsers struct{ rows []repository.AdminUserRow }

func (f fakeUsers) ListForAdmin(context.Context) ([]repository.AdminUserRow, error) { return f.rows, nil }

type fakeSales struct {
	top int
	a   repository.Analytics
}

func (f *fakeSales) Analytics(_ context.Context, top int) (repository.Analytics, error) {
	f.top = top
	return f.a, nil
}

type adminFixture struct {
	h       *AdminHandler
	parties *fakeAdminParties
	reviews *fakeReviews
	sales   *fakeSales
	cache   *countingCache
}

func newAdminFixture() adminFixture {
	text := "great night"
	f := adminFixture{
		parties: &fakeAdminParties{
			statuses: map[uint64]model.PartyStatus{7: model.PartyScheduled},
			rows:     []repository.AdminPartyRow{{ID: 7, MovieTitle: "Heat", HostName: "Ana", Status: "scheduled", ParticipantCount: 3}},
		},
		reviews: &fakeReviews{rows: map[[2]uint64]repository.ReviewRow{
			{3, 42}: {ClientID: 3, MovieID: 42, MovieTitle: "Heat", Score: 5, ReviewText: &text},
		}},
		sales: &fakeSales{a: repository.Analytics{RevenueCents: 2598, ActiveTickets: 2,
			TopSelling: []repository.MovieSales{{MovieID: 42, Title: "Heat", TicketsSold: 2, RevenueCents: 2598}}}},
		cache: &countingCache{},
	}
	users := fakeUsers{rows: []repository.AdminUserRow{{ID: 3, Email: "ana@example.com", Role: model.RoleClient, TicketCount: 2}}}
	f.h = NewAdminHandler(f.parties, f.reviews, users, f.sales, f.cache)
	return f
}

func TestAdminListParties(t *testing.T) {
	f := newAdminFixture()
	rec := call(f.h.ListParties, http.MethodGet, "/v1/admin/parties", "", 1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"participant_count":3`)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	f.parties.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, call(f.h.ListParties, http.MethodGet, "/v1/admin/parties", "", 1).Code)
}

func TestAdminSetPartyStatus(t *testing.T) {
	f := newAdminFixture()

	rec := call(f.h.SetPartyStatus, http.MethodPatch, "/v1/admin/parties/7/status", `{"status":" Active "}`, 1, "id", "7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PartyActive, f.parties.statuses[7])
	assert.Equal(t, []string{middleware.CacheGroupParties}, f.cache.groups)

	rec = call(f.h.SetPartyStatus, http.MethodPatch, "/v1/admin/parties/7/status", `{"status":"paused"}`, 1, "id", "7")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"status"`)

	rec = call(f.h.SetPartyStatus, http.MethodPatch, "/v1/admin/parties/9/status", `{"status":"cancelled"}`, 1, "id", "9")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(f.h.SetPartyStatus, http.MethodPatch, "/v1/admin/parties/x/status", `{"status":"cancelled"}`, 1, "id", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, f.cache.groups, 1)
}

func TestAdminDeleteParty(t *testing.T) {
	f := newAdminFixture()

	rec := call(f.h.DeleteParty, http.MethodDelete, "/v1/admin/parties/7", "", 1, "id", "7")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.parties.statuses)
	assert.Equal(t, []string{middleware.CacheGroupParties}, f.cache.groups)

	rec = call(f.h.DeleteParty, http.MethodDelete, "/v1/admin/parties/7", "", 1, "id", "7")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, f.cache.groups, 1)
}

func TestAdminReviews(t *testing.T) {
	f := newAdminFixture()

	rec := call(f.h.ListReviews, http.MethodGet, "/v1/admin/reviews", "", 1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"review_text":"great night"`)

	rec = call(f.h.DeleteReview, http.MethodDelete, "/v1/admin/reviews/3/42", "", 1, "client_id", "3", "movie_id", "42")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.reviews.rows)
	assert.Equal(t, []string{middleware.CacheGroupMovies}, f.cache.groups)

	rec = call(f.h.DeleteReview, http.MethodDelete, "/v1/admin/reviews/3/42", "", 1, "client_id", "3", "movie_id", "42")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(f.h.DeleteReview, http.MethodDelete, "/v1/admin/reviews/0/42", "", 1, "client_id", "0", "movie_id", "42")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminUsersAndAnalytics(t *testing.T) {
	f := newAdminFixture()

	rec := call(f.h.ListUsers, http.MethodGet, "/v1/admin/users", "", 1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ticket_count":2`)

	rec = call(f.h.Analytics, http.MethodGet, "/v1/admin/analytics", "", 1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, analyticsTop, f.sales.top)
	assert.Contains(t, rec.Body.String(), `"revenue_cents":2598`)
	assert.Contains(t, rec.Body.String(), `"tickets_sold":2`)
}
