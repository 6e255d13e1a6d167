package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/watch-party/internal/model"
	"github.com/iliyamo/watch-party/internal/utils"
)

// UserRepo persists accounts.  A CLIENT user's ID is the client ID used by
// tickets and party membership.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userColumns = "id,email,name,password_hash,role,is_active,created_at,updated_at"

func scanUser(s rowScanner) (model.User, error) {
	var u model.User
	err := s.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create hashes the password, inserts the user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, name, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, name, password_hash, role) VALUES (?,?,?,?)",
		email, strings.TrimSpace(name), hash, role)
	if err != nil {
		if errors.Is(classify(err), ErrDuplicate) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// AdminUserRow is one account in the admin user list.
type AdminUserRow struct {
	ID          uint64 `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	IsActive    bool   `json:"is_active"`
	TicketCount int    `json:"ticket_count"`
	CreatedAt   string `json:"created_at"`
}

// ListForAdmin returns every account, newest first, with its ticket count.
func (r *UserRepo) ListForAdmin(ctx context.Context) ([]AdminUserRow, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT u.id, u.email, u.name, u.role, u.is_active, COUNT(t.id), u.created_at
		 FROM users u
		 LEFT JOIN tickets t ON t.client_id = u.id
		 GROUP BY u.id, u.email, u.name, u.role, u.is_active, u.created_at
		 ORDER BY u.created_at DESC, u.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]AdminUserRow, 0)
	for rows.Next() {
		var (
			u       AdminUserRow
			created time.Time
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.IsActive, &u.TicketCount, &created); err != nil {
			return nil, err
		}
		u.CreatedAt = created.UTC().Format(time.RFC3339)
		out = append(out, u)
	}
	return out, rows.Err()
}
