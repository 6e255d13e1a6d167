package model

import "time"

// Movie is a catalog entry.
type Movie struct {
    ID              uint64    // movies.id
    Title           string    // movies.title
    Description     *string   // movies.description (nullable)
    Genre           string    // movies.genre
    ReleaseYear     uint16    // movies.release_year
    DurationMinutes uint16    // movies.duration_minutes
    PriceCents      uint32    // movies.price_cents
    PosterURL       *string   // movies.poster_url (nullable)
    CreatedAt       time.Time // movies.created_at
}

// Rating is one client's score for one movie (1..5) with an optional
// written review.
type Rating struct {
    ClientID   uint64    // ratings.client_id
    MovieID    uint64    // ratings.movie_id
    Score      uint8     // ratings.score
    ReviewText *string   // ratings.review_text (nullable)
    CreatedAt  time.Time // ratings.created_at
    UpdatedAt  time.Time // ratings.updated_at
}
