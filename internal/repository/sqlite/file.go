package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/jsonhost/internal/apperror"
	"github.com/sakif/jsonhost/internal/model"
	"github.com/sakif/jsonhost/internal/repository"
)

var _ repository.FileRepository = (*DB)(nil)

// CreateFile inserts a new document with views = 0 and fills in ID and
// timestamps. The (user_id, name_key) index turns a case-variant duplicate
// into apperror.ErrConflict.
func (db *DB) CreateFile(ctx context.Context, file *model.JSONFile) error {
	now := time.Now().UTC()
	file.ID = xid.New().String()
	file.Views = 0
	file.CreatedAt = now
	file.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO json_files (id, user_id, file_name, name_key, content, views, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		file.ID,
		file.UserID,
		file.FileName,
		model.FoldName(file.FileName),
		file.Content,
		file.Views,
		file.CreatedAt,
		file.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMsg(fmt.Sprintf("a file named %q already exists", file.FileName))
		}
		return fmt.Errorf("sqlite: creating file: %w", err)
	}
	return nil
}

// GetFile looks up the owner's file by exact (case-sensitive) name.
func (db *DB) GetFile(ctx context.Context, userID, fileName string) (*model.JSONFile, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, file_name, content, views, created_at, updated_at
		 FROM json_files
		 WHERE user_id = ? AND file_name = ?`,
		userID, fileName,
	)
	return scanFileRow(row, fileName)
}

// FindFileFold looks up the owner's file by its case fold. Used to detect
// a case-variant duplicate before creating a new file.
func (db *DB) FindFileFold(ctx context.Context, userID, fileName string) (*model.JSONFile, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, file_name, content, views, created_at, updated_at
		 FROM json_files
		 WHERE user_id = ? AND name_key = ?`,
		userID, model.FoldName(fileName),
	)
	return scanFileRow(row, fileName)
}

func scanFileRow(row *sql.Row, fileName string) (*model.JSONFile, error) {
	var f model.JSONFile
	err := row.Scan(
		&f.ID, &f.UserID, &f.FileName, &f.Content,
		&f.Views, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("file", fileName)
		}
		return nil, fmt.Errorf("sqlite: getting file %q: %w", fileName, err)
	}
	return &f, nil
}

// ListFiles returns the owner's files newest first, without content.
// rowid breaks ties between files created within the same clock tick.
func (db *DB) ListFiles(ctx context.Context, userID string) ([]model.JSONFile, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, file_name, views, created_at, updated_at
		 FROM json_files
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing files: %w", err)
	}
	defer rows.Close()

	files := make([]model.JSONFile, 0)
	for rows.Next() {
		var f model.JSONFile
		if err := rows.Scan(
			&f.ID, &f.UserID, &f.FileName, &f.Views,
			&f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning file row: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating files: %w", err)
	}

	return files, nil
}

// UpdateFileContent replaces content in place. id, created_at and views are
// left untouched.
func (db *DB) UpdateFileContent(ctx context.Context, file *model.JSONFile) error {
	file.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE json_files
		 SET content = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		file.Content,
		file.UpdatedAt,
		file.ID,
		file.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating file %s: %w", file.ID, err)
	}
	return expectOneRow(result, "file", file.FileName)
}

func (db *DB) DeleteFile(ctx context.Context, userID, fileName string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM json_files WHERE user_id = ? AND file_name = ?`,
		userID, fileName,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting file %q: %w", fileName, err)
	}
	return expectOneRow(result, "file", fileName)
}

// IncrementViews is a single UPDATE so concurrent readers never lose a
// count.
func (db *DB) IncrementViews(ctx context.Context, fileID string) (int64, error) {
	var views int64
	err := db.conn.QueryRowContext(ctx,
		`UPDATE json_files SET views = views + 1 WHERE id = ? RETURNING views`,
		fileID,
	).Scan(&views)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.NotFound("file", fileID)
		}
		return 0, fmt.Errorf("sqlite: incrementing views for file %s: %w", fileID, err)
	}
	return views, nil
}

// rekeyFileNames rewrites name_key wherever it differs from model.FoldName.
// The SQL backfill in migration 00003 can only lower() ASCII. A row whose
// new key collides with a sibling keeps its old key, so names that were
// distinct before stay reachable by exact match.
func (db *DB) rekeyFileNames(ctx context.Context) error {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, file_name, name_key FROM json_files`)
	if err != nil {
		return fmt.Errorf("sqlite: reading file names: %w", err)
	}
	stale := map[string]string{}
	for rows.Next() {
		var id, name, key string
		if err := rows.Scan(&id, &name, &key); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite: scanning file name: %w", err)
		}
		if folded := model.FoldName(name); folded != key {
			stale[id] = folded
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: reading file names: %w", err)
	}

	for id, key := range stale {
		_, err := db.conn.ExecContext(ctx, `UPDATE json_files SET name_key = ? WHERE id = ?`, key, id)
		if err != nil && !isUniqueViolation(err) {
			return fmt.Errorf("sqlite: rekeying file %s: %w", id, err)
		}
	}
	return nil
}
