package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAdminNotFound is returned by writes that target a missing admin.
var ErrAdminNotFound = errors.New("admin not found")

type Admin struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	TokenVersion int       `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) CreateAdmin(ctx context.Context, a Admin) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO admins (id, username, password_hash, token_version, created_at)
		VALUES (?, ?, ?, 0, ?)
	`, a.ID, a.Username, a.PasswordHash, a.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (*Admin, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, username, password_hash, token_version, created_at
		FROM admins
		WHERE LOWER(username) = ?
	`, strings.ToLower(strings.TrimSpace(username)))
	a, err := scanAdmin(row)
	if err != nil {
		return nil, fmt.Errorf("get by username: %w", err)
	}
	return a, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Admin, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, username, password_hash, token_version, created_at
		FROM admins
		WHERE id = ?
	`, id)
	a, err := scanAdmin(row)
	if err != nil {
		return nil, fmt.Errorf("get by id: %w", err)
	}
	return a, nil
}

func (r *Repo) List(ctx context.Context) ([]Admin, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, username, password_hash, token_version, created_at
		FROM admins
		ORDER BY username
	`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	out := []Admin{}
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanAdmin returns (nil, nil) when the row does not exist.
func scanAdmin(row rowScanner) (*Admin, error) {
	var (
		a         Admin
		createdAt string
	)
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.TokenVersion, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &a, nil
}

func (r *Repo) GetTokenVersion(ctx context.Context, id string) (int, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT token_version
		FROM admins
		WHERE id = ?
	`, id)

	var version int
	if err := row.Scan(&version); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrAdminNotFound
		}
		return 0, fmt.Errorf("get token version: %w", err)
	}
	return version, nil
}

// UpdatePassword stores a new hash and invalidates every issued token.
func (r *Repo) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE admins
		SET password_hash = ?, token_version = token_version + 1
		WHERE id = ?
	`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return mustAffect(res, "update password")
}

func (r *Repo) BumpTokenVersion(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE admins
		SET token_version = token_version + 1
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("bump token version: %w", err)
	}
	return mustAffect(res, "bump token version")
}

func mustAffect(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrAdminNotFound)
	}
	return nil
}
