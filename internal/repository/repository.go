// Package repository declares the storage contracts the service layer
// depends on. internal/repository/sqlite and internal/repository/postgres
// implement them.
package repository

import (
	"context"

	"github.com/sakif/jsonhost/internal/model"
)

// UserRepository stores accounts.
//
// Implementations return apperror.ErrNotFound when no row matches and
// apperror.ErrConflict when a unique constraint (email, api_key) is violated.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByAPIKey(ctx context.Context, apiKey string) (*model.User, error)
	// SetAPIKey overwrites the user's key. A nil key clears it.
	SetAPIKey(ctx context.Context, userID string, apiKey *string) error
	// SetPreviewURL overwrites the user's preview URL. A nil URL clears it.
	SetPreviewURL(ctx context.Context, userID string, previewURL *string) error
}

// FileRepository stores JSON documents. Every method is scoped to an owner.
type FileRepository interface {
	CreateFile(ctx context.Context, file *model.JSONFile) error
	// GetFile matches fileName exactly.
	GetFile(ctx context.Context, userID, fileName string) (*model.JSONFile, error)
	// FindFileFold matches fileName case-insensitively.
	FindFileFold(ctx context.Context, userID, fileName string) (*model.JSONFile, error)
	// ListFiles returns the owner's files newest-created first. Content is
	// not loaded.
	ListFiles(ctx context.Context, userID string) ([]model.JSONFile, error)
	// UpdateFileContent replaces content and bumps updated_at in place.
	UpdateFileContent(ctx context.Context, file *model.JSONFile) error
	DeleteFile(ctx context.Context, userID, fileName string) error
	// IncrementViews atomically adds one to the file's counter and returns
	// the new value.
	IncrementViews(ctx context.Context, fileID string) (int64, error)
}

// Store is an opened backend.
type Store interface {
	Users() UserRepository
	Files() FileRepository
	Ping(ctx context.Context) error
	Close() error
}
