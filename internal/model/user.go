package model

import "time"

// Roles carried in the JWT "role" claim.
const (
    RoleClient = "CLIENT"
    RoleAdmin  = "ADMIN"
)

// User represents an account stored in the `users` table.  Every user with
// the CLIENT role is a "client" in party terms: the user ID is the client ID
// referenced by tickets, ratings and party membership rows.
//
// Fields:
//  ID           – primary key identifier; doubles as the client ID.
//  Email        – unique, normalised (lower case) email address.
//  Name         – display name shown in participant lists.
//  PasswordHash – bcrypt hashed password.
//  Role         – CLIENT or ADMIN.
//  IsActive     – whether the account may sign in.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email
    Name         string    // users.name
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}
