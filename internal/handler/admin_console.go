package handler

import (
    "context"
    "errors"
    "log"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/watch-party/internal/middleware"
    "github.com/iliyamo/watch-party/internal/repository"
)

// analyticsTop is the length of the best seller and best rated lists.
const analyticsTop = 5

// AdminReviewStore is implemented by *repository.MovieRepo.
type AdminReviewStore interface {
    ListReviews(ctx context.Context) ([]repository.ReviewRow, error)
    DeleteRating(ctx context.Context, clientID, movieID uint64) error
}

// AdminUserStore is implemented by *repository.UserRepo.
type AdminUserStore interface {
    ListForAdmin(ctx context.Context) ([]repository.AdminUserRow, error)
}

// AdminSalesStore is implemented by *repository.TicketRepo.
type AdminSalesStore interface {
    Analytics(ctx context.Context, top int) (repository.Analytics, error)
}

// ListReviews handles GET /v1/admin/reviews.
func (h *AdminHandler) ListReviews(c echo.Context) error {
    items, err := h.Reviews.ListReviews(c.Request().Context())
    if err != nil {
        log.Printf("admin: list reviews: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items, "total": len(items)})
}

// DeleteReview handles DELETE /v1/admin/reviews/:client_id/:movie_id.  The
// movie's rating summary changes, so the catalog cache is dropped.
func (h *AdminHandler) DeleteReview(c echo.Context) error {
    clientID, ok := pathID(c, "client_id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid client id"})
    }
    movieID, ok := pathID(c, "movie_id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
    }
    err := h.Reviews.DeleteRating(c.Request().Context(), clientID, movieID)
    if errors.Is(err, repository.ErrRatingNotFound) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "review not found", "code": "not_found"})
    }
    if err != nil {
        log.Printf("admin: delete review %d/%d: %v", clientID, movieID, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    h.invalidate(c, middleware.CacheGroupMovies)
    return c.NoContent(http.StatusNoContent)
}

// ListUsers handles GET /v1/admin/users.
func (h *AdminHandler) ListUsers(c echo.Context) error {
    items, err := h.Users.ListForAdmin(c.Request().Context())
    if err != nil {
        log.Printf("admin: list users: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items, "total": len(items)})
}

// Analytics handles GET /v1/admin/analytics.
func (h *AdminHandler) Analytics(c echo.Context) error {
    a, err := h.Sales.Analytics(c.Request().Context(), analyticsTop)
    if err != nil {
        log.Printf("admin: analytics: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, a)
}
