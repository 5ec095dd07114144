package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"watchlog/pkg/database"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	TokenVersion int
	CreatedAt    time.Time
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// CreateUser returns ErrUserExists when the username or email is taken.
func (r *Repo) CreateUser(ctx context.Context, u User) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash)
		VALUES (?, ?, ?, ?)
	`, u.ID, u.Username, strings.ToLower(u.Email), u.PasswordHash)
	if err != nil {
		if database.IsConflict(err) {
			return ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

const userColumns = `id, username, email, password_hash, token_version, created_at`

func (r *Repo) getOne(ctx context.Context, where string, arg any) (*User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)

	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.TokenVersion, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := r.getOne(ctx, `LOWER(email) = ?`, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return nil, fmt.Errorf("get by email: %w", err)
	}
	return u, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := r.getOne(ctx, `id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get by id: %w", err)
	}
	return u, nil
}

// GetTokenVersion reports found=false for unknown users.
func (r *Repo) GetTokenVersion(ctx context.Context, id string) (version int, found bool, err error) {
	err = r.DB.QueryRowContext(ctx, `SELECT token_version FROM users WHERE id = ?`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get token version: %w", err)
	}
	return version, true, nil
}

func (r *Repo) UpdatePasswordAndBumpTokenVersion(ctx context.Context, id string, passwordHash string) error {
	return r.bump(ctx, "update password", `
		UPDATE users
		SET password_hash = ?, token_version = token_version + 1
		WHERE id = ?
	`, passwordHash, id)
}

func (r *Repo) BumpTokenVersion(ctx context.Context, id string) error {
	return r.bump(ctx, "bump token version", `
		UPDATE users
		SET token_version = token_version + 1
		WHERE id = ?
	`, id)
}

func (r *Repo) bump(ctx context.Context, op, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}
