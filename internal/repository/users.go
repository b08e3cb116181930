// Package repository provides PostgreSQL persistence for the catalog server.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/atinyakov/GophShop/internal/models"
)

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("already exists")
)

const uniqueViolation = "23505"

// PostgresUserRepository stores users and their password hashes.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a repository on db.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

const userColumns = `id, username, email, first_name, last_name, gender, image`

// GetByUsername returns the user with its password hash.
func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*models.UserRecord, error) {
	var rec models.UserRecord
	err := r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+`, password_hash FROM users WHERE username = $1`,
		username,
	).Scan(&rec.ID, &rec.Username, &rec.Email, &rec.FirstName, &rec.LastName, &rec.Gender, &rec.Image, &rec.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetByUsername: %w", err)
	}
	return &rec, nil
}

// GetByID returns the public profile of a user.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.Gender, &u.Image)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return &u, nil
}

// Create inserts a user and returns its id. A taken username is ErrConflict.
func (r *PostgresUserRepository) Create(ctx context.Context, rec *models.UserRecord) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO users (username, email, first_name, last_name, gender, image, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, rec.Username, rec.Email, rec.FirstName, rec.LastName, rec.Gender, rec.Image, rec.PasswordHash).Scan(&id)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return 0, ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}
