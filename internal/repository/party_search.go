package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// rfc3339Milli is the timestamp layout used in party list responses.
const rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"

// PartySearchQuery defines filters & pagination for browsing parties.
type PartySearchQuery struct {
	MovieID  uint64
	Title    string
	Now      time.Time
	Page     int
	PageSize int
}

// PublicPartyRow is one party in the public list.
type PublicPartyRow struct {
	ID               uint64  `json:"id"`
	MovieID          uint64  `json:"movie_id"`
	MovieTitle       string  `json:"movie_title"`
	PosterURL        *string `json:"poster_url,omitempty"`
	HostID           uint64  `json:"host_id"`
	HostName         string  `json:"host_name"`
	ScheduledTime    string  `json:"scheduled_time"`
	JoinCode         string  `json:"join_code"`
	Status           string  `json:"status"`
	MaxParticipants  int     `json:"max_participants"`
	ParticipantCount int     `json:"participant_count"`
	Description      *string `json:"description,omitempty"`
}

// SearchUpcoming lists scheduled or active parties that have not started yet,
// soonest first.
func (r *PartyRepo) SearchUpcoming(ctx context.Context, q PartySearchQuery) ([]PublicPartyRow, int64, error) {
	where := []string{"wp.status IN ('scheduled','active')", "wp.scheduled_time >= ?"}
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}
	args := []any{now.UTC()}

	if q.MovieID != 0 {
		where = append(where, "wp.movie_id = ?")
		args = append(args, q.MovieID)
	}
	if q.Title != "" {
		where = append(where, "LOWER(m.title) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Title)+"%")
	}
	cond := strings.Join(where, " AND ")

	var total int64
	countSQL := `SELECT COUNT(*)
		FROM watch_parties wp
		JOIN movies m ON m.id = wp.movie_id
		WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.PageSize
	offset := (q.Page - 1) * q.PageSize

	dataSQL := `SELECT
			wp.id, wp.movie_id, m.title, m.poster_url,
			wp.host_id, u.name,
			wp.scheduled_time, wp.join_code, wp.status, wp.max_participants,
			(SELECT COUNT(*) FROM party_participants pp WHERE pp.party_id = wp.id) AS participant_count,
			wp.description
		FROM watch_parties wp
		JOIN movies m ON m.id = wp.movie_id
		JOIN users u  ON u.id = wp.host_id
		WHERE ` + cond + `
		ORDER BY wp.scheduled_time ASC, wp.id ASC
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]PublicPartyRow, 0, limit)
	for rows.Next() {
		var (
			d         PublicPartyRow
			poster    sql.NullString
			desc      sql.NullString
			scheduled time.Time
		)
		if err := rows.Scan(
			&d.ID, &d.MovieID, &d.MovieTitle, &poster,
			&d.HostID, &d.HostName,
			&scheduled, &d.JoinCode, &d.Status, &d.MaxParticipants,
			&d.ParticipantCount,
			&desc,
		); err != nil {
			return nil, 0, err
		}
		d.ScheduledTime = scheduled.UTC().Format(time.RFC3339)
		if poster.Valid {
			p := poster.String
			d.PosterURL = &p
		}
		if desc.Valid {
			s := desc.String
			d.Description = &s
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// AdminPartyRow is one party in the admin console list.
type AdminPartyRow struct {
	ID               uint64 `json:"id"`
	MovieTitle       string `json:"movie_title"`
	HostName         string `json:"host_name"`
	HostEmail        string `json:"host_email"`
	ScheduledTime    string `json:"scheduled_time"`
	Status           string `json:"status"`
	MaxParticipants  int    `json:"max_participants"`
	ParticipantCount int    `json:"participant_count"`
	CreatedAt        string `json:"created_at"`
}

// ListAllForAdmin returns every party, newest first, with participant counts.
func (r *PartyRepo) ListAllForAdmin(ctx context.Context) ([]AdminPartyRow, error) {
	const q = `SELECT wp.id, m.title, u.name, u.email, wp.scheduled_time, wp.status, wp.max_participants,
	                  COUNT(pp.id), wp.created_at
	           FROM watch_parties wp
	           JOIN movies m ON m.id = wp.movie_id
	           JOIN users u  ON u.id = wp.host_id
	           LEFT JOIN party_participants pp ON pp.party_id = wp.id
	           GROUP BY wp.id, m.title, u.name, u.email, wp.scheduled_time, wp.status, wp.max_participants, wp.created_at
	           ORDER BY wp.created_at DESC, wp.id DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]AdminPartyRow, 0)
	for rows.Next() {
		var (
			d                  AdminPartyRow
			scheduled, created time.Time
		)
		if err := rows.Scan(&d.ID, &d.MovieTitle, &d.HostName, &d.HostEmail, &scheduled, &d.Status,
			&d.MaxParticipants, &d.ParticipantCount, &created); err != nil {
			return nil, err
		}
		d.ScheduledTime = scheduled.UTC().Format(time.RFC3339)
		d.CreatedAt = created.UTC().Format(time.RFC3339)
		out = append(out, d)
	}
	return out, rows.Err()
}
