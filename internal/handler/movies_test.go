package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/watch-party/internal/middleware"
    "github.com/iliyamo/watch-party/internal/model"
    "github.com/iliyamo/watch-party/internal/repository"
)

type ratingMovies struct {
    fakeMovies
    rated []model.Rating
}

func (f *ratingMovies) UpsertRating(_ context.Context, r model.Rating) error {
    if _, ok := f.movies[r.MovieID]; !ok {
        return repository.ErrMovieNotFound
    }
    f.rated = append(f.rated, r)
    return nil
}

func TestRateMovie(t *testing.T) {
    movies := &ratingMovies{fakeMovies: fakeMovies{movies: map[uint64]model.Movie{42: {ID: 42, Title: "Heat"}}}}
    cc := &countingCache{}
    h := NewMovieHandler(movies, cc)

    rec := call(h.Rate, http.MethodPut, "/v1/movies/42/rating", `{"score":4}`, 3, "id", "42")
    assert.Equal(t, http.StatusOK, rec.Code)
    if assert.Len(t, movies.rated, 1) {
        assert.Equal(t, uint64(3), movies.rated[0].ClientID)
        assert.Equal(t, uint8(4), movies.rated[0].Score)
    }
    assert.Equal(t, []string{middleware.CacheGroupMovies}, cc.groups)

    rec = call(h.Rate, http.MethodPut, "/v1/movies/42/rating", `{"score":6}`, 3, "id", "42")
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Contains(t, rec.Body.String(), `"field":"score"`)

    rec = call(h.Rate, http.MethodPut, "/v1/movies/9/rating", `{"score":2}`, 3, "id", "9")
    assert.Equal(t, http.StatusNotFound, rec.Code)

    rec = call(h.Rate, http.MethodPut, "/v1/movies/42/rating", `{"score":2}`, 0, "id", "42")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateMovieWithReview(t *testing.T) {
    movies := &ratingMovies{fakeMovies: fakeMovies{movies: map[uint64]model.Movie{42: {ID: 42, Title: "Heat"}}}}
    h := NewMovieHandler(movies, nil)

    rec := call(h.Rate, http.MethodPut, "/v1/movies/42/rating", `{"score":5,"review_text":"  best heist ever  "}`, 3, "id", "42")
    require.Equal(t, http.StatusOK, rec.Code)
    require.Len(t, movies.rated, 1)
    require.NotNil(t, movies.rated[0].ReviewText)
    assert.Equal(t, "best heist ever", *movies.rated[0].ReviewText)

    rec = call(h.Rate, http.MethodPut, "/v1/movies/42/rating", `{"score":5,"review_text":"   "}`, 3, "id", "42")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Nil(t, movies.rated[1].ReviewText)

    long := `{"score":3,"review_text":"` + strings.Repeat("é", maxReviewRunes+1) + `"}`
    rec = call(h.Rate, http.MethodPut, "/v1/movies/42/rating", long, 3, "id", "42")
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Contains(t, rec.Body.String(), `"field":"review_text"`)
    assert.Len(t, movies.rated, 2)
}

func TestGetMovie(t *testing.T) {
    h := NewMovieHandler(&fakeMovies{movies: map[uint64]model.Movie{42: {ID: 42, Title: "Heat", Genre: "crime"}}}, nil)

    rec := call(h.Get, http.MethodGet, "/v1/movies/42", "", 0, "id", "42")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Contains(t, rec.Body.String(), `"title":"Heat"`)

    assert.Equal(t, http.StatusNotFound, call(h.Get, http.MethodGet, "/v1/movies/5", "", 0, "id", "5").Code)
    assert.Equal(t, http.StatusBadRequest, call(h.Get, http.MethodGet, "/v1/movies/x", "", 0, "id", "x").Code)
}

func TestListMoviesRejectsBadYear(t *testing.T) {
    h := NewMovieHandler(&fakeMovies{}, nil)
    rec := call(h.List, http.MethodGet, "/v1/movies?year=abc", "", 0)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestReady(t *testing.T) {
    assert.Equal(t, http.StatusOK, call(Ready(pinger{}), http.MethodGet, "/readyz", "", 0).Code)
    assert.Equal(t, http.StatusServiceUnavailable, call(Ready(pinger{err: errors.New("down")}), http.MethodGet, "/readyz", "", 0).Code)
    assert.Equal(t, http.StatusOK, call(Health, http.MethodGet, "/healthz", "", 0).Code)
}
