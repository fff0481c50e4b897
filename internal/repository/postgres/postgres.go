// Package postgres implements the repository interfaces on PostgreSQL using
// the pgx stdlib driver. Schema migrations are embedded and applied with
// goose when the store is opened.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/sakif/jsonhost/internal/repository"
	"github.com/sakif/jsonhost/internal/repository/postgres/migrations"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// DB implements repository.Store on a *sql.DB opened with the "pgx" driver.
type DB struct {
	conn *sql.DB
}

var _ repository.Store = (*DB)(nil)

// New connects to dsn, verifies the connection and migrates the schema.
func New(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	db := NewWithConn(conn)
	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// NewWithConn wraps an already opened pool without running migrations.
// Tests pass a sqlmock connection here.
func NewWithConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

func (db *DB) Users() repository.UserRepository { return db }

func (db *DB) Files() repository.FileRepository { return db }

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, conn *sql.DB, dir string) error {
	return goose.UpContext(ctx, conn, dir)
}

// Migrate applies all pending migrations.
func (db *DB) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("postgres: setting goose dialect: %w", err)
	}
	if err := gooseUp(ctx, db.conn, "."); err != nil {
		return fmt.Errorf("postgres: running migrations: %w", err)
	}
	return db.rekeyFileNames(ctx)
}

// MigrationStatus prints the state of every migration through goose's
// logger.
func (db *DB) MigrationStatus(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("postgres: setting goose dialect: %w", err)
	}
	if err := goose.StatusContext(ctx, db.conn, "."); err != nil {
		return fmt.Errorf("postgres: migration status: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
