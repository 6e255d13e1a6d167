package handler

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"
    "unicode/utf8"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/watch-party/internal/middleware"
    "github.com/iliyamo/watch-party/internal/model"
    "github.com/iliyamo/watch-party/internal/repository"
)

const maxReviewRunes = 2000

// MovieStore is the subset of *repository.MovieRepo used by the catalog.
type MovieStore interface {
    GetByID(ctx context.Context, id uint64) (model.Movie, error)
    List(ctx context.Context, f repository.MovieFilter) ([]model.Movie, error)
    UpsertRating(ctx context.Context, r model.Rating) error
    RatingSummary(ctx context.Context, movieID uint64) (float64, int, error)
}

// MovieHandler serves the public catalog and client ratings.
type MovieHandler struct {
    Movies MovieStore
    Cache  CacheInvalidator
}

func NewMovieHandler(movies MovieStore, cache CacheInvalidator) *MovieHandler {
    return &MovieHandler{Movies: movies, Cache: cache}
}

type movieView struct {
    ID              uint64  `json:"id"`
    Title           string  `json:"title"`
    Description     *string `json:"description,omitempty"`
    Genre           string  `json:"genre"`
    ReleaseYear     uint16  `json:"release_year"`
    DurationMinutes uint16  `json:"duration_minutes"`
    PriceCents      uint32  `json:"price_cents"`
    PosterURL       *string `json:"poster_url,omitempty"`
}

func toMovieView(m model.Movie) movieView {
    return movieView{
        ID:              m.ID,
        Title:           m.Title,
        Description:     m.Description,
        Genre:           m.Genre,
        ReleaseYear:     m.ReleaseYear,
        DurationMinutes: m.DurationMinutes,
        PriceCents:      m.PriceCents,
        PosterURL:       m.PosterURL,
    }
}

// List handles GET /v1/movies?genre=&title=&year=.
func (h *MovieHandler) List(c echo.Context) error {
    f := repository.MovieFilter{
        Genre: strings.TrimSpace(c.QueryParam("genre")),
        Title: strings.TrimSpace(c.QueryParam("title")),
    }
    if v := c.QueryParam("year"); v != "" {
        y, err := strconv.Atoi(v)
        if err != nil || y < 1888 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid year"})
        }
        f.Year = y
    }
    movies, err := h.Movies.List(c.Request().Context(), f)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    out := make([]movieView, 0, len(movies))
    for _, m := range movies {
        out = append(out, toMovieView(m))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Get handles GET /v1/movies/:id and includes the rating summary.
func (h *MovieHandler) Get(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
    }
    ctx := c.Request().Context()
    m, err := h.Movies.GetByID(ctx, id)
    if errors.Is(err, repository.ErrMovieNotFound) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
    }
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    avg, count, err := h.Movies.RatingSummary(ctx, id)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "movie":        toMovieView(m),
        "rating_avg":   avg,
        "rating_count": count,
    })
}

// Rate handles PUT /v1/movies/:id/rating with body
// {"score": 1..5, "review_text": "..."}.  A second call replaces the client's
// previous score and review; an empty review_text clears the review.
func (h *MovieHandler) Rate(c echo.Context) error {
    clientID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
    }
    var body struct {
        Score      int    `json:"score"`
        ReviewText string `json:"review_text"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.Score < 1 || body.Score > 5 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "score must be between 1 and 5", "field": "score"})
    }
    var review *string
    if t := strings.TrimSpace(body.ReviewText); t != "" {
        if utf8.RuneCountInString(t) > maxReviewRunes {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "review_text is too long", "field": "review_text"})
        }
        review = &t
    }
    err = h.Movies.UpsertRating(c.Request().Context(), model.Rating{
        ClientID: clientID, MovieID: id, Score: uint8(body.Score), ReviewText: review, UpdatedAt: time.Now().UTC(),
    })
    if errors.Is(err, repository.ErrMovieNotFound) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
    }
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if h.Cache != nil {
        h.Cache.Invalidate(c.Request().Context(), middleware.CacheGroupMovies)
    }
    return c.JSON(http.StatusOK, echo.Map{"movie_id": id, "score": body.Score, "review_text": review})
}
