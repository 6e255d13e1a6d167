package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/watch-party/internal/middleware"
    "github.com/iliyamo/watch-party/internal/model"
    "github.com/iliyamo/watch-party/internal/repository"
)

// AdminPartyStore is the subset of *repository.PartyRepo used by admins.
type AdminPartyStore interface {
    ListAllForAdmin(ctx context.Context) ([]repository.AdminPartyRow, error)
    SetStatus(ctx context.Context, id uint64, status model.PartyStatus) error
    Delete(ctx context.Context, id uint64) error
}

// AdminHandler serves the ADMIN console: party moderation, review
// moderation, the user list and sales analytics.  Status changes are the
// only way a party leaves "scheduled"; membership never touches the status.
type AdminHandler struct {
    Parties AdminPartyStore
    Reviews AdminReviewStore
    Users   AdminUserStore
    Sales   AdminSalesStore
    Cache   CacheInvalidator
}

func NewAdminHandler(parties AdminPartyStore, reviews AdminReviewStore, users AdminUserStore, sales AdminSalesStore, cache CacheInvalidator) *AdminHandler {
    return &AdminHandler{Parties: parties, Reviews: reviews, Users: users, Sales: sales, Cache: cache}
}

// ListParties handles GET /v1/admin/parties.
func (h *AdminHandler) ListParties(c echo.Context) error {
    items, err := h.Parties.ListAllForAdmin(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items, "total": len(items)})
}

// SetPartyStatus handles PATCH /v1/admin/parties/:id/status with body
// {"status": "scheduled|active|completed|cancelled"}.
func (h *AdminHandler) SetPartyStatus(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid party id"})
    }
    var body struct {
        Status string `json:"status"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    st := model.PartyStatus(strings.ToLower(strings.TrimSpace(body.Status)))
    if !st.Valid() {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status", "field": "status"})
    }
    err := h.Parties.SetStatus(c.Request().Context(), id, st)
    if errors.Is(err, repository.ErrPartyNotFound) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "party not found", "code": "not_found"})
    }
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    h.invalidate(c, middleware.CacheGroupParties)
    return c.JSON(http.StatusOK, echo.Map{"id": id, "status": st})
}

// DeleteParty handles DELETE /v1/admin/parties/:id.  Participants are
// removed with the party.
func (h *AdminHandler) DeleteParty(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid party id"})
    }
    err := h.Parties.Delete(c.Request().Context(), id)
    if errors.Is(err, repository.ErrPartyNotFound) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "party not found", "code": "not_found"})
    }
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    h.invalidate(c, middleware.CacheGroupParties)
    return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) invalidate(c echo.Context, group string) {
    if h.Cache != nil {
        h.Cache.Invalidate(c.Request().Context(), group)
    }
}
