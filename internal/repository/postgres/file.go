package postgres

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

func (db *DB) CreateFile(ctx context.Context, file *model.JSONFile) error {
	now := time.Now().UTC()
	file.ID = xid.New().String()
	file.Views = 0
	file.CreatedAt = now
	file.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO json_files (id, user_id, file_name, name_key, content, views, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		file.ID, file.UserID, file.FileName, model.FoldName(file.FileName), file.Content,
		file.Views, file.CreatedAt, file.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMsg(fmt.Sprintf("a file named %q already exists", file.FileName))
		}
		return fmt.Errorf("postgres: creating file: %w", err)
	}
	return nil
}

func (db *DB) GetFile(ctx context.Context, userID, fileName string) (*model.JSONFile, error) {
	return db.getFile(ctx,
		`SELECT id, user_id, file_name, content, views, created_at, updated_at
		 FROM json_files WHERE user_id = $1 AND file_name = $2`,
		userID, fileName)
}

// FindFileFold matches on name_key, the Go-side case fold, so both stores
// agree on what counts as a duplicate.
func (db *DB) FindFileFold(ctx context.Context, userID, fileName string) (*model.JSONFile, error) {
	return db.getFile(ctx,
		`SELECT id, user_id, file_name, content, views, created_at, updated_at
		 FROM json_files WHERE user_id = $1 AND name_key = $2`,
		userID, model.FoldName(fileName))
}

func (db *DB) getFile(ctx context.Context, query, userID, fileName string) (*model.JSONFile, error) {
	var f model.JSONFile
	err := db.conn.QueryRowContext(ctx, query, userID, fileName).Scan(
		&f.ID, &f.UserID, &f.FileName, &f.Content,
		&f.Views, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("file", fileName)
		}
		return nil, fmt.Errorf("postgres: getting file %q: %w", fileName, err)
	}
	return &f, nil
}

func (db *DB) ListFiles(ctx context.Context, userID string) ([]model.JSONFile, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, file_name, views, created_at, updated_at
		 FROM json_files
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing files: %w", err)
	}
	defer rows.Close()

	files := make([]model.JSONFile, 0)
	for rows.Next() {
		var f model.JSONFile
		if err := rows.Scan(&f.ID, &f.UserID, &f.FileName, &f.Views, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scanning file row: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating files: %w", err)
	}
	return files, nil
}

func (db *DB) UpdateFileContent(ctx context.Context, file *model.JSONFile) error {
	file.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE json_files SET content = $1, updated_at = $2
		 WHERE id = $3 AND user_id = $4`,
		file.Content, file.UpdatedAt, file.ID, file.UserID,
	)
	if err != nil {
		return fmt.Errorf("postgres: updating file %s: %w", file.ID, err)
	}
	return expectOneRow(result, "file", file.FileName)
}

func (db *DB) DeleteFile(ctx context.Context, userID, fileName string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM json_files WHERE user_id = $1 AND file_name = $2`,
		userID, fileName,
	)
	if err != nil {
		return fmt.Errorf("postgres: deleting file %q: %w", fileName, err)
	}
	return expectOneRow(result, "file", fileName)
}

func (db *DB) IncrementViews(ctx context.Context, fileID string) (int64, error) {
	var views int64
	err := db.conn.QueryRowContext(ctx,
		`UPDATE json_files SET views = views + 1 WHERE id = $1 RETURNING views`,
		fileID,
	).Scan(&views)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.NotFound("file", fileID)
		}
		return 0, fmt.Errorf("postgres: incrementing views for file %s: %w", fileID, err)
	}
	return views, nil
}

// rekeyFileNames rewrites name_key wherever it differs from model.FoldName.
// The SQL backfill in migration 00003 uses lower(), which does not fold
// every case pair the way Go does. A row whose new key collides with a
// sibling keeps its old key.
func (db *DB) rekeyFileNames(ctx context.Context) error {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, file_name, name_key FROM json_files`)
	if err != nil {
		return fmt.Errorf("postgres: reading file names: %w", err)
	}
	stale := map[string]string{}
	for rows.Next() {
		var id, name, key string
		if err := rows.Scan(&id, &name, &key); err != nil {
			rows.Close()
			return fmt.Errorf("postgres: scanning file name: %w", err)
		}
		if folded := model.FoldName(name); folded != key {
			stale[id] = folded
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: reading file names: %w", err)
	}

	for id, key := range stale {
		_, err := db.conn.ExecContext(ctx, `UPDATE json_files SET name_key = $1 WHERE id = $2`, key, id)
		if err != nil && !isUniqueViolation(err) {
			return fmt.Errorf("postgres: rekeying file %s: %w", id, err)
		}
	}
	return nil
}
