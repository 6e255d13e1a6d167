package handler

import (
    "context"
    "errors"
    "log"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/watch-party/internal/middleware"
    "github.com/iliyamo/watch-party/internal/model"
    "github.com/iliyamo/watch-party/internal/party"
    "github.com/iliyamo/watch-party/internal/repository"
)

// PartyService is the membership API implemented by *party.Manager.
type PartyService interface {
    Create(ctx context.Context, req party.CreateRequest) (model.WatchParty, error)
    Join(ctx context.Context, partyID, clientID uint64) (party.JoinResult, error)
    JoinByCode(ctx context.Context, code string, clientID uint64) (party.JoinResult, error)
    Leave(ctx context.Context, partyID, clientID uint64) (party.LeaveResult, error)
}

// PartyReader serves the read-only party endpoints.  *repository.PartyRepo
// implements it.
type PartyReader interface {
    GetByID(ctx context.Context, id uint64) (model.WatchParty, error)
    GetByCode(ctx context.Context, code string) (model.WatchParty, error)
    ListParticipants(ctx context.Context, partyID uint64) ([]repository.ParticipantRow, error)
    SearchUpcoming(ctx context.Context, q repository.PartySearchQuery) ([]repository.PublicPartyRow, int64, error)
}

// CacheInvalidator drops cached listings after a write.
type CacheInvalidator interface {
    Invalidate(ctx context.Context, groups ...string)
}

// PartyHandler serves watch party browsing and membership endpoints.
// Membership endpoints assume JWTAuth and the CLIENT role were enforced by
// middleware; the client id always comes from the token, never the body.
type PartyHandler struct {
    Service             PartyService
    Parties             PartyReader
    Cache               CacheInvalidator
    DefaultParticipants int
}

// NewPartyHandler wires a PartyHandler.  cache may be nil.
func NewPartyHandler(svc PartyService, parties PartyReader, cache CacheInvalidator, defaultParticipants int) *PartyHandler {
    if svc == nil || parties == nil {
        panic("nil dependency passed to NewPartyHandler")
    }
    return &PartyHandler{Service: svc, Parties: parties, Cache: cache, DefaultParticipants: defaultParticipants}
}

// partyView is the JSON shape of a single party.
type partyView struct {
    ID              uint64    `json:"id"`
    HostID          uint64    `json:"host_id"`
    MovieID         uint64    `json:"movie_id"`
    ScheduledTime   time.Time `json:"scheduled_time"`
    JoinCode        string    `json:"join_code"`
    Status          string    `json:"status"`
    MaxParticipants int       `json:"max_participants"`
    Description     *string   `json:"description,omitempty"`
    CreatedAt       time.Time `json:"created_at"`
}

func toPartyView(p model.WatchParty) partyView {
    return partyView{
        ID:              p.ID,
        HostID:          p.HostID,
        MovieID:         p.MovieID,
        ScheduledTime:   p.ScheduledTime.UTC(),
        JoinCode:        p.JoinCode,
        Status:          string(p.Status),
        MaxParticipants: p.MaxParticipants,
        Description:     p.Description,
        CreatedAt:       p.CreatedAt.UTC(),
    }
}

type createPartyReq struct {
    MovieID         uint64    `json:"movie_id"`
    ScheduledTime   time.Time `json:"scheduled_time"`
    MaxParticipants *int      `json:"max_participants"`
    Description     string    `json:"description"`
    JoinCode        string    `json:"join_code"`
}

// Create handles POST /v1/parties.  The caller becomes host and first
// participant.  max_participants defaults to the configured default.
func (h *PartyHandler) Create(c echo.Context) error {
    clientID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req createPartyReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if req.MovieID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "movie_id is required", "field": "movie_id"})
    }
    capacity := h.DefaultParticipants
    if req.MaxParticipants != nil {
        capacity = *req.MaxParticipants
    }

    p, err := h.Service.Create(c.Request().Context(), party.CreateRequest{
        HostID:          clientID,
        MovieID:         req.MovieID,
        ScheduledTime:   req.ScheduledTime,
        MaxParticipants: capacity,
        Description:     req.Description,
        JoinCode:        req.JoinCode,
    })
    if err != nil {
        return writePartyError(c, err)
    }
    h.invalidate(c)
    return c.JSON(http.StatusCreated, toPartyView(p))
}

// Join handles POST /v1/parties/:id/join.
func (h *PartyHandler) Join(c echo.Context) error {
    clientID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    partyID, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid party id"})
    }
    res, err := h.Service.Join(c.Request().Context(), partyID, clientID)
    if err != nil {
        return writePartyError(c, err)
    }
    return h.joined(c, res)
}

// JoinByCode handles POST /v1/parties/join with body {"join_code": "..."}.
func (h *PartyHandler) JoinByCode(c echo.Context) error {
    clientID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        JoinCode string `json:"join_code"`
    }
    if err := c.Bind(&body); err != nil || strings.TrimSpace(body.JoinCode) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "join_code is required", "field": "join_code"})
    }
    res, err := h.Service.JoinByCode(c.Request().Context(), body.JoinCode, clientID)
    if err != nil {
        return writePartyError(c, err)
    }
    return h.joined(c, res)
}

func (h *PartyHandler) joined(c echo.Context, res party.JoinResult) error {
    status := http.StatusCreated
    if res.AlreadyMember {
        status = http.StatusOK
    } else {
        h.invalidate(c)
    }
    return c.JSON(status, echo.Map{
        "party":          toPartyView(res.Party),
        "already_member": res.AlreadyMember,
    })
}

// Leave handles POST /v1/parties/:id/leave.  The body reports whether the
// party was deleted and, when the caller was host, who took over.
func (h *PartyHandler) Leave(c echo.Context) error {
    clientID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    partyID, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid party id"})
    }
    res, err := h.Service.Leave(c.Request().Context(), partyID, clientID)
    if err != nil {
        return writePartyError(c, err)
    }
    h.invalidate(c)
    return c.JSON(http.StatusOK, res)
}

// List handles GET /v1/parties: upcoming scheduled or active parties,
// soonest first.  Optional filters: movie_id, title.
func (h *PartyHandler) List(c echo.Context) error {
    page, size, ok := pageParams(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "page must be a number between 1 and 10000", "field": "page"})
    }
    q := repository.PartySearchQuery{
        Title:    strings.TrimSpace(c.QueryParam("title")),
        Now:      time.Now().UTC(),
        Page:     page,
        PageSize: size,
    }
    if v := c.QueryParam("movie_id"); v != "" {
        id, err := strconv.ParseUint(v, 10, 64)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie_id"})
        }
        q.MovieID = id
    }
    items, total, err := h.Parties.SearchUpcoming(c.Request().Context(), q)
    if err != nil {
        log.Printf("party: list failed: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "data":      items,
        "total":     total,
        "page":      page,
        "page_size": size,
    })
}

// Get handles GET /v1/parties/:id and includes the participant list.
func (h *PartyHandler) Get(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid party id"})
    }
    p, err := h.Parties.GetByID(c.Request().Context(), id)
    return h.detail(c, p, err)
}

// GetByCode handles GET /v1/parties/code/:code.
func (h *PartyHandler) GetByCode(c echo.Context) error {
    code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
    p, err := h.Parties.GetByCode(c.Request().Context(), code)
    return h.detail(c, p, err)
}

func (h *PartyHandler) detail(c echo.Context, p model.WatchParty, err error) error {
    if errors.Is(err, repository.ErrPartyNotFound) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "party not found", "code": "not_found"})
    }
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    members, err := h.Parties.ListParticipants(c.Request().Context(), p.ID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "party":             toPartyView(p),
        "participants":      members,
        "participant_count": len(members),
    })
}

func (h *PartyHandler) invalidate(c echo.Context) {
    if h.Cache != nil {
        h.Cache.Invalidate(c.Request().Context(), middleware.CacheGroupParties)
    }
}

// writePartyError maps party error kinds to HTTP responses.  Every response
// carries a machine readable "code"; validation errors add the offending
// "field" and conflicts that are worth retrying set "retryable".
func writePartyError(c echo.Context, err error) error {
    type mapping struct {
        kind   error
        status int
        code   string
        field  string
    }
    for _, m := range []mapping{
        {party.ErrNotFound, http.StatusNotFound, "not_found", ""},
        {party.ErrNotAParticipant, http.StatusConflict, "not_a_participant", ""},
        {party.ErrEntitlementMissing, http.StatusForbidden, "entitlement_missing", ""},
        {party.ErrInvalidSchedule, http.StatusBadRequest, "invalid_schedule", "scheduled_time"},
        {party.ErrInvalidCapacity, http.StatusBadRequest, "invalid_capacity", "max_participants"},
        {party.ErrInvalidJoinCode, http.StatusBadRequest, "invalid_join_code", "join_code"},
        {party.ErrJoinCodeTaken, http.StatusConflict, "join_code_taken", "join_code"},
        {party.ErrPartyFull, http.StatusConflict, "party_full", ""},
        {party.ErrPartyClosed, http.StatusConflict, "party_closed", ""},
    } {
        if errors.Is(err, m.kind) {
            body := echo.Map{"error": err.Error(), "code": m.code}
            if m.field != "" {
                body["field"] = m.field
            }
            return c.JSON(m.status, body)
        }
    }
    if errors.Is(err, party.ErrTransactionConflict) {
        return c.JSON(http.StatusConflict, echo.Map{
            "error":     party.ErrTransactionConflict.Error(),
            "code":      "transaction_conflict",
            "retryable": true,
        })
    }
    log.Printf("party: request failed: %v", err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
