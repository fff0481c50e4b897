package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/jsonhost/internal/apperror"
	"github.com/sakif/jsonhost/internal/model"
	"github.com/sakif/jsonhost/internal/repository"
)

const (
	MaxFileNameLength = 255
	MaxContentBytes   = 5 << 20
)

// FileService is owner-scoped CRUD over JSON documents. Every method takes
// the caller's user id; files of other users are invisible.
type FileService struct {
	files  repository.FileRepository
	logger *slog.Logger
}

func NewFileService(files repository.FileRepository, logger *slog.Logger) *FileService {
	return &FileService{
		files:  files,
		logger: logger,
	}
}

// List returns the caller's files newest first, without content.
func (s *FileService) List(ctx context.Context, userID string) ([]model.FileSummary, error) {
	files, err := s.files.ListFiles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/file: listing files: %w", err)
	}

	out := make([]model.FileSummary, 0, len(files))
	for i := range files {
		out = append(out, files[i].Summary())
	}
	return out, nil
}

// Get returns the caller's file with the exact name, content included.
func (s *FileService) Get(ctx context.Context, userID, fileName string) (*model.JSONFile, error) {
	if fileName == "" {
		return nil, apperror.ValidationFailed("fileName", "file name is required")
	}
	f, err := s.files.GetFile(ctx, userID, fileName)
	if err != nil {
		return nil, fmt.Errorf("service/file: getting file: %w", err)
	}
	return f, nil
}

// Upsert creates the named file or replaces its content in place.
//
// An exact-name match is updated, keeping id, createdAt and views. A name
// that differs from an existing one only by case is rejected with
// apperror.ErrConflict. Content must be syntactically valid JSON and is
// stored exactly as given.
func (s *FileService) Upsert(ctx context.Context, userID, fileName, content string) (*model.JSONFile, bool, error) {
	fileName = strings.TrimSpace(fileName)
	if err := validateFileName(fileName); err != nil {
		return nil, false, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, false, apperror.ValidationFailed("content", "content is required")
	}
	if len(content) > MaxContentBytes {
		return nil, false, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d bytes or less", MaxContentBytes))
	}
	if !json.Valid([]byte(content)) {
		return nil, false, apperror.InvalidFormat("content", "content must be valid JSON")
	}

	existing, err := s.files.GetFile(ctx, userID, fileName)
	switch {
	case err == nil:
		return s.update(ctx, existing, content)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, false, fmt.Errorf("service/file: looking up file: %w", err)
	}

	if other, err := s.files.FindFileFold(ctx, userID, fileName); err == nil {
		return nil, false, apperror.ConflictMsg(
			fmt.Sprintf("a file named %q already exists", other.FileName))
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, fmt.Errorf("service/file: checking duplicate name: %w", err)
	}

	f := &model.JSONFile{
		UserID:   userID,
		FileName: fileName,
		Content:  content,
	}
	if err := s.files.CreateFile(ctx, f); err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, false, fmt.Errorf("service/file: creating file: %w", err)
		}
		// A concurrent save of the same name won the insert. Last write
		// wins, so update that row; a case variant keeps the conflict.
		existing, getErr := s.files.GetFile(ctx, userID, fileName)
		if getErr != nil {
			return nil, false, fmt.Errorf("service/file: creating file: %w", err)
		}
		return s.update(ctx, existing, content)
	}

	s.logger.Info("file saved",
		slog.String("userID", userID),
		slog.String("fileID", f.ID),
		slog.Bool("created", true),
	)
	return f, true, nil
}

func (s *FileService) update(ctx context.Context, existing *model.JSONFile, content string) (*model.JSONFile, bool, error) {
	existing.Content = content
	if err := s.files.UpdateFileContent(ctx, existing); err != nil {
		return nil, false, fmt.Errorf("service/file: updating file: %w", err)
	}
	s.logger.Info("file saved",
		slog.String("userID", existing.UserID),
		slog.String("fileID", existing.ID),
		slog.Bool("created", false),
	)
	return existing, false, nil
}

// Delete permanently removes the caller's file with the exact name.
func (s *FileService) Delete(ctx context.Context, userID, fileName string) error {
	if fileName == "" {
		return apperror.ValidationFailed("fileName", "file name is required")
	}
	if err := s.files.DeleteFile(ctx, userID, fileName); err != nil {
		return fmt.Errorf("service/file: deleting file: %w", err)
	}
	s.logger.Info("file deleted",
		slog.String("userID", userID),
		slog.String("fileName", fileName),
	)
	return nil
}

// validateFileName keeps names usable as a single URL path segment.
func validateFileName(name string) error {
	switch {
	case name == "":
		return apperror.ValidationFailed("fileName", "file name is required")
	case len(name) > MaxFileNameLength:
		return apperror.ValidationFailed("fileName",
			fmt.Sprintf("file name must be %d characters or less", MaxFileNameLength))
	case strings.ContainsAny(name, "/\\"):
		return apperror.ValidationFailed("fileName", "file name must not contain slashes")
	case name == "." || name == "..":
		return apperror.ValidationFailed("fileName", "file name is reserved")
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return apperror.ValidationFailed("fileName", "file name must not contain control characters")
		}
	}
	return nil
}
