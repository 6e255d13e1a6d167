package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/watch-party/internal/model"
    "github.com/iliyamo/watch-party/internal/repository"
)

// TicketStore is the subset of *repository.TicketRepo used by clients.
type TicketStore interface {
    Purchase(ctx context.Context, clientID, movieID uint64, priceCents uint32, method string) (model.Ticket, model.Payment, error)
    ListByClient(ctx context.Context, clientID uint64) ([]repository.TicketDetail, error)
}

// paymentMethods are accepted by the mocked checkout.  No money moves; the
// payment row is written as completed.
var paymentMethods = map[string]bool{"card": true, "paypal": true, "wallet": true}

// TicketHandler sells tickets, which are the entitlement for watch parties.
type TicketHandler struct {
    Tickets TicketStore
    Movies  MovieStore
}

func NewTicketHandler(tickets TicketStore, movies MovieStore) *TicketHandler {
    return &TicketHandler{Tickets: tickets, Movies: movies}
}

type ticketView struct {
    ID         uint64    `json:"id"`
    MovieID    uint64    `json:"movie_id"`
    PriceCents uint32    `json:"price_cents"`
    AccessCode string    `json:"access_code"`
    IsActive   bool      `json:"is_active"`
    CreatedAt  time.Time `json:"created_at"`
}

func toTicketView(t model.Ticket) ticketView {
    return ticketView{
        ID: t.ID, MovieID: t.MovieID, PriceCents: t.PriceCents,
        AccessCode: t.AccessCode, IsActive: t.IsActive, CreatedAt: t.CreatedAt.UTC(),
    }
}

// Purchase handles POST /v1/movies/:id/tickets with optional body
// {"payment_method": "card"}.  The price is taken from the catalog.  A
// client that already holds an active ticket gets 409 with that ticket.
func (h *TicketHandler) Purchase(c echo.Context) error {
    clientID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    movieID, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
    }
    var body struct {
        PaymentMethod string `json:"payment_method"`
    }
    _ = c.Bind(&body)
    method := strings.ToLower(strings.TrimSpace(body.PaymentMethod))
    if method == "" {
        method = "card"
    }
    if !paymentMethods[method] {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unsupported payment method", "field": "payment_method"})
    }

    ctx := c.Request().Context()
    m, err := h.Movies.GetByID(ctx, movieID)
    if errors.Is(err, repository.ErrMovieNotFound) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
    }
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }

    t, p, err := h.Tickets.Purchase(ctx, clientID, movieID, m.PriceCents, method)
    if errors.Is(err, repository.ErrConflict) {
        return c.JSON(http.StatusConflict, echo.Map{
            "error":  "you already own an active ticket for this movie",
            "ticket": toTicketView(t),
        })
    }
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "purchase failed"})
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "ticket": toTicketView(t),
        "payment": echo.Map{
            "amount_cents":   p.AmountCents,
            "method":         p.Method,
            "status":         p.Status,
            "transaction_id": p.TransactionID,
        },
    })
}

// ListMine handles GET /v1/my-tickets.
func (h *TicketHandler) ListMine(c echo.Context) error {
    clientID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    items, err := h.Tickets.ListByClient(c.Request().Context(), clientID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}
