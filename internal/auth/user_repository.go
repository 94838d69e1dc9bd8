package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Evildoersudo/back-end/internal/infrastructure/database"
)

// UserRepository provides access to stored accounts.
type UserRepository interface {
	// GetByUsername fetches one account, or ErrUserNotFound.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// FindByAccount resolves a login identifier, matching the username
	// exactly or the email case-insensitively.
	FindByAccount(ctx context.Context, account string) (*User, error)

	// Create stores a new account.
	Create(ctx context.Context, u *User) error

	// Update persists the mutable fields of an existing account.
	Update(ctx context.Context, u *User) error

	// EmailTaken reports whether any account uses the email.
	EmailTaken(ctx context.Context, email string) (bool, error)
}

// SQLiteUserRepository implements UserRepository on the shared SQLite
// database.
type SQLiteUserRepository struct {
	db database.DBTX
}

// NewSQLiteUserRepository creates a user repository over db.
func NewSQLiteUserRepository(db database.DBTX) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = `username, email, password_hash, role, reset_code_hash, reset_expires_at, created_at, updated_at`

func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return r.queryOne(ctx, query, username)
}

func (r *SQLiteUserRepository) FindByAccount(ctx context.Context, account string) (*User, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, ErrUserNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ? OR email = ? LIMIT 1`
	return r.queryOne(ctx, query, account, strings.ToLower(account))
}

func (r *SQLiteUserRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.ResetCodeHash, &u.ResetExpiresAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

func (r *SQLiteUserRepository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		u.Username, u.Email, u.PasswordHash, u.Role,
		u.ResetCodeHash, u.ResetExpiresAt, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			if strings.Contains(err.Error(), "users.email") {
				return ErrEmailExists
			}
			return ErrUsernameExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *SQLiteUserRepository) Update(ctx context.Context, u *User) error {
	query := `
		UPDATE users
		SET email = ?, password_hash = ?, role = ?, reset_code_hash = ?, reset_expires_at = ?, updated_at = ?
		WHERE username = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		u.Email, u.PasswordHash, u.Role, u.ResetCodeHash, u.ResetExpiresAt, u.UpdatedAt,
		u.Username,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *SQLiteUserRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM users WHERE email = ?`
	if err := r.db.QueryRowContext(ctx, query, strings.ToLower(email)).Scan(&count); err != nil {
		return false, fmt.Errorf("checking email: %w", err)
	}
	return count > 0, nil
}
