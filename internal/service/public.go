package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sakif/jsonhost/internal/apperror"
	"github.com/sakif/jsonhost/internal/auth"
	"github.com/sakif/jsonhost/internal/model"
	"github.com/sakif/jsonhost/internal/repository"
)

// PublicService resolves API keys to their owner's files for anonymous,
// read-only access.
//
// A revoked key and a key that never existed are indistinguishable: both
// yield NotFound "Invalid API key".
type PublicService struct {
	users  repository.UserRepository
	files  repository.FileRepository
	logger *slog.Logger
}

func NewPublicService(users repository.UserRepository, files repository.FileRepository, logger *slog.Logger) *PublicService {
	return &PublicService{
		users:  users,
		files:  files,
		logger: logger,
	}
}

func (s *PublicService) owner(ctx context.Context, apiKey string) (*model.User, error) {
	if !auth.ValidAPIKey(apiKey) {
		return nil, apperror.NotFoundMsg("Invalid API key")
	}
	user, err := s.users.GetUserByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("service/public: resolving key: %w", err)
	}
	return user, nil
}

// ListByKey lists the key owner's files with an absolute URL for each.
// baseURL is the scheme and host the URLs are rooted at.
func (s *PublicService) ListByKey(ctx context.Context, apiKey, baseURL string) (*model.PublicListing, error) {
	user, err := s.owner(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	files, err := s.files.ListFiles(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/public: listing files: %w", err)
	}
	if len(files) == 0 {
		return nil, apperror.NotFoundMsg("No files found")
	}

	listing := &model.PublicListing{
		APIKey:    apiKey,
		FileCount: len(files),
		Files:     make([]model.PublicFile, 0, len(files)),
	}
	for _, f := range files {
		listing.Files = append(listing.Files, model.PublicFile{
			FileName:  f.FileName,
			URL:       FileURL(baseURL, apiKey, f.FileName),
			Views:     f.Views,
			CreatedAt: f.CreatedAt,
			UpdatedAt: f.UpdatedAt,
		})
	}
	return listing, nil
}

// GetByKey returns the raw content of the key owner's file and counts one
// view. The increment is persisted before the content is returned.
func (s *PublicService) GetByKey(ctx context.Context, apiKey, fileName string) (string, error) {
	user, err := s.owner(ctx, apiKey)
	if err != nil {
		return "", err
	}

	f, err := s.files.GetFile(ctx, user.ID, fileName)
	if err != nil {
		return "", fmt.Errorf("service/public: getting file: %w", err)
	}

	views, err := s.files.IncrementViews(ctx, f.ID)
	if err != nil {
		return "", fmt.Errorf("service/public: counting view: %w", err)
	}

	s.logger.Debug("public file served",
		slog.String("fileID", f.ID),
		slog.Int64("views", views),
	)
	return f.Content, nil
}

// FileURL builds the public address of one file.
func FileURL(baseURL, apiKey, fileName string) string {
	return strings.TrimRight(baseURL, "/") + "/data/key/" + url.PathEscape(apiKey) + "/" + url.PathEscape(fileName)
}
