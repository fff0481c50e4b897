package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sakif/jsonhost/internal/apperror"
	"github.com/sakif/jsonhost/internal/repository"
)

const MaxPreviewURLLength = 2048

// PreviewService stores the per-user preview URL, an auxiliary preference
// the editor uses to show the user's own site next to a document.
type PreviewService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewPreviewService(users repository.UserRepository, logger *slog.Logger) *PreviewService {
	return &PreviewService{
		users:  users,
		logger: logger,
	}
}

// Get returns the caller's preview URL, or nil when unset.
func (s *PreviewService) Get(ctx context.Context, userID string) (*string, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/preview: fetching user %s: %w", userID, err)
	}
	return user.PreviewURL, nil
}

// Set stores raw as the caller's preview URL. An empty value clears it;
// anything else must be an absolute http or https URL.
func (s *PreviewService) Set(ctx context.Context, userID, raw string) (*string, error) {
	raw = strings.TrimSpace(raw)

	var value *string
	if raw != "" {
		if err := validatePreviewURL(raw); err != nil {
			return nil, err
		}
		value = &raw
	}

	if err := s.users.SetPreviewURL(ctx, userID, value); err != nil {
		return nil, fmt.Errorf("service/preview: storing preview url: %w", err)
	}
	s.logger.Info("preview url updated",
		slog.String("userID", userID),
		slog.Bool("cleared", value == nil),
	)
	return value, nil
}

func validatePreviewURL(raw string) error {
	if len(raw) > MaxPreviewURLLength {
		return apperror.InvalidFormat("previewUrl",
			fmt.Sprintf("preview url must be %d characters or less", MaxPreviewURLLength))
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return apperror.InvalidFormat("previewUrl", "preview url must be an absolute http(s) URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apperror.InvalidFormat("previewUrl", "preview url must be an absolute http(s) URL")
	}
	return nil
}
