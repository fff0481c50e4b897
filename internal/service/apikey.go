package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/jsonhost/internal/apperror"
	"github.com/sakif/jsonhost/internal/repository"
)

// maxKeyAttempts bounds how often Generate retries after a key collided
// with another user's live key.
const maxKeyAttempts = 3

// KeyGenerator produces opaque API keys. *auth.KeyGenerator satisfies it.
type KeyGenerator interface {
	Generate() (string, error)
}

// APIKeyService manages the single live API key of each user.
type APIKeyService struct {
	users  repository.UserRepository
	keys   KeyGenerator
	logger *slog.Logger
}

func NewAPIKeyService(users repository.UserRepository, keys KeyGenerator, logger *slog.Logger) *APIKeyService {
	return &APIKeyService{
		users:  users,
		keys:   keys,
		logger: logger,
	}
}

// Generate issues a fresh key and overwrites the caller's current one. The
// old key stops resolving as soon as the write commits.
func (s *APIKeyService) Generate(ctx context.Context, userID string) (string, error) {
	for attempt := 1; attempt <= maxKeyAttempts; attempt++ {
		key, err := s.keys.Generate()
		if err != nil {
			return "", fmt.Errorf("service/apikey: %w", err)
		}

		err = s.users.SetAPIKey(ctx, userID, &key)
		if err == nil {
			s.logger.Info("api key rotated", slog.String("userID", userID))
			return key, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return "", fmt.Errorf("service/apikey: storing key for user %s: %w", userID, err)
		}
		s.logger.Warn("api key collision, retrying",
			slog.String("userID", userID),
			slog.Int("attempt", attempt),
		)
	}
	return "", fmt.Errorf("service/apikey: no unique key after %d attempts", maxKeyAttempts)
}

// Get returns the caller's live key, or nil if none was ever generated or
// it was deleted.
func (s *APIKeyService) Get(ctx context.Context, userID string) (*string, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/apikey: fetching user %s: %w", userID, err)
	}
	return user.APIKey, nil
}

// Delete revokes the caller's key. Deleting when no key exists is not an
// error.
func (s *APIKeyService) Delete(ctx context.Context, userID string) error {
	if err := s.users.SetAPIKey(ctx, userID, nil); err != nil {
		return fmt.Errorf("service/apikey: clearing key for user %s: %w", userID, err)
	}
	s.logger.Info("api key deleted", slog.String("userID", userID))
	return nil
}
