package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// EnsureAdmin creates the configured bootstrap admin when no admin with that
// username exists. An empty password disables bootstrapping.
func EnsureAdmin(ctx context.Context, repo *Repo, username, password string, logger *log.Logger) (created bool, err error) {
	if logger == nil {
		logger = log.Default()
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		logger.Warn("[auth] no bootstrap admin configured")
		return false, nil
	}
	if msg := validCredentials(username, password); msg != "" {
		return false, errors.New("bootstrap admin: " + msg)
	}

	existing, err := repo.GetByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash bootstrap password: %w", err)
	}
	if err := repo.CreateAdmin(ctx, Admin{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
	}); err != nil {
		return false, err
	}
	logger.Info("[auth] bootstrap admin created", "username", username)
	return true, nil
}
