// Package sqlite implements the repository interfaces on an embedded SQLite
// database.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code, so the binary builds anywhere Go does.
//
// The schema lives in ./migrations as plain SQL files and is applied by goose
// when the database is opened. Use ":memory:" as the path for a throwaway
// database in tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	msqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/sakif/jsonhost/internal/repository"
	"github.com/sakif/jsonhost/internal/repository/sqlite/migrations"
)

// DB wraps a sql.DB connection pool and implements both
// repository.UserRepository and repository.FileRepository.
type DB struct {
	conn *sql.DB
}

var _ repository.Store = (*DB)(nil)

// New opens the SQLite database at dbPath and migrates it to the latest
// schema version.
//
// sql.Open does NOT actually open a connection, it only creates the pool
// manager. We Ping to surface a bad path or permissions problem now rather
// than on the first request.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" gets its own empty database, so the
	// pool must never open a second one.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.Migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// dsn builds a URI filename whose _pragma parameters the driver runs on
// every connection it opens. A PRAGMA sent through conn.Exec would only
// reach whichever pooled connection served it.
//
//   - busy_timeout: concurrent writers wait for the lock instead of failing
//     with SQLITE_BUSY.
//   - foreign_keys: OFF by default in SQLite; json_files.user_id relies on
//     it for ON DELETE CASCADE.
//   - journal_mode(WAL): readers proceed while a write is in progress. It
//     does not apply to an in-memory database.
func dsn(dbPath string) string {
	pragmas := []string{"busy_timeout(5000)", "foreign_keys(1)"}
	if dbPath != ":memory:" {
		pragmas = append(pragmas, "journal_mode(WAL)")
	}
	return "file:" + dbPath + "?_pragma=" + strings.Join(pragmas, "&_pragma=")
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

func (db *DB) Users() repository.UserRepository { return db }

func (db *DB) Files() repository.FileRepository { return db }

// Migrate applies all pending migrations. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.conn, "."); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return db.rekeyFileNames(ctx)
}

// MigrationStatus prints the applied/pending state of every migration
// through goose's logger.
func (db *DB) MigrationStatus(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("sqlite: setting goose dialect: %w", err)
	}
	if err := goose.StatusContext(ctx, db.conn, "."); err != nil {
		return fmt.Errorf("sqlite: migration status: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint.
func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlitelib.SQLITE_CONSTRAINT_UNIQUE, sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// nullString maps a nil pointer to SQL NULL.
func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
