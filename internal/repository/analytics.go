package repository

import (
    "context"
    "database/sql"
)

// MovieSales is a movie's ticket count and ticket revenue.
type MovieSales struct {
    MovieID      uint64 `json:"movie_id"`
    Title        string `json:"title"`
    TicketsSold  int    `json:"tickets_sold"`
    RevenueCents int64  `json:"revenue_cents"`
}

// MovieScore is a movie's average rating.
type MovieScore struct {
    MovieID     uint64  `json:"movie_id"`
    Title       string  `json:"title"`
    AvgScore    float64 `json:"avg_score"`
    RatingCount int     `json:"rating_count"`
}

// Analytics is the admin dashboard summary.
type Analytics struct {
    RevenueCents  int64        `json:"revenue_cents"`
    ActiveTickets int          `json:"active_tickets"`
    AvgRating     float64      `json:"avg_rating"`
    RatingCount   int          `json:"rating_count"`
    TopSelling    []MovieSales `json:"top_selling"`
    TopRated      []MovieScore `json:"top_rated"`
}

// Analytics summarises sales and ratings.  Revenue counts completed
// payments only; per-movie revenue is the ticket price paid.  top bounds both
// leaderboards.
func (r *TicketRepo) Analytics(ctx context.Context, top int) (Analytics, error) {
    var (
        a   Analytics
        avg sql.NullFloat64
    )
    if err := r.db.QueryRowContext(ctx,
        `SELECT COALESCE(SUM(amount_cents), 0) FROM payments WHERE status = 'completed'`).Scan(&a.RevenueCents); err != nil {
        return Analytics{}, err
    }
    if err := r.db.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM tickets WHERE is_active = 1`).Scan(&a.ActiveTickets); err != nil {
        return Analytics{}, err
    }
    if err := r.db.QueryRowContext(ctx,
        `SELECT AVG(score), COUNT(*) FROM ratings`).Scan(&avg, &a.RatingCount); err != nil {
        return Analytics{}, err
    }
    a.AvgRating = avg.Float64

    rows, err := r.db.QueryContext(ctx,
        `SELECT m.id, m.title, COUNT(t.id), COALESCE(SUM(t.price_cents), 0)
         FROM tickets t
         JOIN movies m ON m.id = t.movie_id
         GROUP BY m.id, m.title
         ORDER BY COUNT(t.id) DESC, m.id ASC
         LIMIT ?`, top)
    if err != nil {
        return Analytics{}, err
    }
    a.TopSelling = make([]MovieSales, 0, top)
    for rows.Next() {
        var s MovieSales
        if err := rows.Scan(&s.MovieID, &s.Title, &s.TicketsSold, &s.RevenueCents); err != nil {
            rows.Close()
            return Analytics{}, err
        }
        a.TopSelling = append(a.TopSelling, s)
    }
    rows.Close()
    if err := rows.Err(); err != nil {
        return Analytics{}, err
    }

    rows, err = r.db.QueryContext(ctx,
        `SELECT m.id, m.title, AVG(r.score), COUNT(*)
         FROM ratings r
         JOIN movies m ON m.id = r.movie_id
         GROUP BY m.id, m.title
         ORDER BY AVG(r.score) DESC, COUNT(*) DESC, m.id ASC
         LIMIT ?`, top)
    if err != nil {
        return Analytics{}, err
    }
    defer rows.Close()
    a.TopRated = make([]MovieScore, 0, top)
    for rows.Next() {
        var s MovieScore
        if err := rows.Scan(&s.MovieID, &s.Title, &s.AvgScore, &s.RatingCount); err != nil {
            return Analytics{}, err
        }
        a.TopRated = append(a.TopRated, s)
    }
    return a, rows.Err()
}
