package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/watch-party/internal/model"
)

// ErrMovieNotFound indicates that a movie was not located in the DB.
var ErrMovieNotFound = errors.New("movie not found")

// MovieRepo provides read access to the catalog and write access to ratings.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo returns a new MovieRepo bound to the given database.
func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{db: db} }

const movieColumns = `id, title, description, genre, release_year, duration_minutes, price_cents, poster_url, created_at`

func scanMovie(s rowScanner) (model.Movie, error) {
	var (
		m      model.Movie
		desc   sql.NullString
		poster sql.NullString
	)
	if err := s.Scan(&m.ID, &m.Title, &desc, &m.Genre, &m.ReleaseYear, &m.DurationMinutes,
		&m.PriceCents, &poster, &m.CreatedAt); err != nil {
		return model.Movie{}, err
	}
	if desc.Valid {
		d := desc.String
		m.Description = &d
	}
	if poster.Valid {
		p := poster.String
		m.PosterURL = &p
	}
	return m, nil
}

// GetByID fetches a single movie.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (model.Movie, error) {
	m, err := scanMovie(r.db.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Movie{}, ErrMovieNotFound
	}
	return m, err
}

// MovieFilter narrows the catalog listing.  Empty fields do not filter.
type MovieFilter struct {
	Genre string
	Title string
	Year  int
}

// List returns catalog entries ordered by title.
func (r *MovieRepo) List(ctx context.Context, f MovieFilter) ([]model.Movie, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.Genre != "" {
		where = append(where, "LOWER(genre) = ?")
		args = append(args, strings.ToLower(f.Genre))
	}
	if f.Title != "" {
		where = append(where, "LOWER(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Title)+"%")
	}
	if f.Year > 0 {
		where = append(where, "release_year = ?")
		args = append(args, f.Year)
	}
	q := `SELECT ` + movieColumns + ` FROM movies WHERE ` + strings.Join(where, " AND ") + ` ORDER BY title ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Movie, 0)
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ErrRatingNotFound is returned when a client has not rated the movie.
var ErrRatingNotFound = errors.New("rating not found")

// UpsertRating stores the client's score and review for a movie, replacing
// any previous ones.  ratings has a primary key on (client_id, movie_id).
func (r *MovieRepo) UpsertRating(ctx context.Context, rt model.Rating) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ratings (client_id, movie_id, score, review_text, updated_at) VALUES (?, ?, ?, ?, UTC_TIMESTAMP())
		 ON DUPLICATE KEY UPDATE score = VALUES(score), review_text = VALUES(review_text), updated_at = VALUES(updated_at)`,
		rt.ClientID, rt.MovieID, rt.Score, rt.ReviewText)
	err = classify(err)
	if errors.Is(err, ErrMissingReference) {
		return ErrMovieNotFound
	}
	return err
}

// RatingSummary returns the average score and number of ratings for a movie.
func (r *MovieRepo) RatingSummary(ctx context.Context, movieID uint64) (float64, int, error) {
	var (
		avg   sql.NullFloat64
		count int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT AVG(score), COUNT(*) FROM ratings WHERE movie_id = ?`, movieID).Scan(&avg, &count)
	if err != nil {
		return 0, 0, err
	}
	return avg.Float64, count, nil
}

// ReviewRow is one rating in the admin review list.
type ReviewRow struct {
	ClientID   uint64  `json:"client_id"`
	ClientName string  `json:"client_name"`
	MovieID    uint64  `json:"movie_id"`
	MovieTitle string  `json:"movie_title"`
	Score      uint8   `json:"score"`
	ReviewText *string `json:"review_text,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// ListReviews returns every rating, newest first.
func (r *MovieRepo) ListReviews(ctx context.Context) ([]ReviewRow, error) {
	const q = `SELECT r.client_id, u.name, r.movie_id, m.title, r.score, r.review_text, r.created_at, r.updated_at
	           FROM ratings r
	           JOIN users u  ON u.id = r.client_id
	           JOIN movies m ON m.id = r.movie_id
	           ORDER BY r.created_at DESC, r.client_id ASC, r.movie_id ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ReviewRow, 0)
	for rows.Next() {
		var (
			rv               ReviewRow
			text             sql.NullString
			created, updated time.Time
		)
		if err := rows.Scan(&rv.ClientID, &rv.ClientName, &rv.MovieID, &rv.MovieTitle, &rv.Score,
			&text, &created, &updated); err != nil {
			return nil, err
		}
		if text.Valid {
			t := text.String
			rv.ReviewText = &t
		}
		rv.CreatedAt = created.UTC().Format(time.RFC3339)
		rv.UpdatedAt = updated.UTC().Format(time.RFC3339)
		out = append(out, rv)
	}
	return out, rows.Err()
}

// DeleteRating removes one client's rating of a movie.
func (r *MovieRepo) DeleteRating(ctx context.Context, clientID, movieID uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ratings WHERE client_id = ? AND movie_id = ?`, clientID, movieID)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRatingNotFound
	}
	return nil
}
