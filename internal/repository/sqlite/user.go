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

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, password_hash, first_name, last_name, mobile,
	type, api_key, preview_url, created_at, updated_at`

// CreateUser inserts a new user and fills in ID and timestamps.
// A duplicate email yields apperror.ErrConflict.
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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail expects email to be normalized by the caller.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// GetUserByAPIKey resolves the owner of a live API key. The key itself is
// kept out of the error message.
func (db *DB) GetUserByAPIKey(ctx context.Context, apiKey string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE api_key = ?`, apiKey)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundMsg("Invalid API key")
		}
		return nil, fmt.Errorf("sqlite: getting user by api key: %w", err)
	}
	return u, nil
}

func (db *DB) SetAPIKey(ctx context.Context, userID string, apiKey *string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET api_key = ?, updated_at = ? WHERE id = ?`,
		nullString(apiKey), time.Now().UTC(), userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMsg("api key already in use")
		}
		return fmt.Errorf("sqlite: setting api key for user %s: %w", userID, err)
	}
	return expectOneRow(result, "user", userID)
}

func (db *DB) SetPreviewURL(ctx context.Context, userID string, previewURL *string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET preview_url = ?, updated_at = ? WHERE id = ?`,
		nullString(previewURL), time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting preview url for user %s: %w", userID, err)
	}
	return expectOneRow(result, "user", userID)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Mobile,
		&u.Type,
		&u.APIKey,
		&u.PreviewURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// expectOneRow turns an UPDATE/DELETE that matched nothing into NotFound.
func expectOneRow(result sql.Result, resource, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
