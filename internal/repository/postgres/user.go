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

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, password_hash, first_name, last_name, mobile,
	type, api_key, preview_url, created_at, updated_at`

func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Type == "" {
		user.Type = model.UserTypeUser
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		nullString(user.Mobile),
		string(user.Type),
		nullString(user.APIKey),
		nullString(user.PreviewURL),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMsg("an account with this email already exists")
		}
		return fmt.Errorf("postgres: inserting user: %w", err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", id, err)
	}
	return u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("postgres: getting user by email: %w", err)
	}
	return u, nil
}

func (db *DB) GetUserByAPIKey(ctx context.Context, apiKey string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE api_key = $1`, apiKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundMsg("Invalid API key")
		}
		return nil, fmt.Errorf("postgres: getting user by api key: %w", err)
	}
	return u, nil
}

func (db *DB) SetAPIKey(ctx context.Context, userID string, apiKey *string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET api_key = $1, updated_at = $2 WHERE id = $3`,
		nullString(apiKey), time.Now().UTC(), userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMsg("api key already in use")
		}
		return fmt.Errorf("postgres: setting api key for user %s: %w", userID, err)
	}
	return expectOneRow(result, "user", userID)
}

func (db *DB) SetPreviewURL(ctx context.Context, userID string, previewURL *string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET preview_url = $1, updated_at = $2 WHERE id = $3`,
		nullString(previewURL), time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("postgres: setting preview url for user %s: %w", userID, err)
	}
	return expectOneRow(result, "user", userID)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Mobile, &u.Type, &u.APIKey, &u.PreviewURL,
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func expectOneRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
