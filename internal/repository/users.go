package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardfree/card-server-go/internal/user"
)

const uniqueViolation = "23505"

// UserRepository persists accounts in the users table.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) GetUser(ctx context.Context, name string) (*user.Record, error) {
	const q = `
		SELECT name, email, salt, password_proof, active, admin, created_at
		FROM users WHERE name = $1`

	var rec user.Record
	err := r.pool.QueryRow(ctx, q, name).Scan(
		&rec.Name, &rec.Email, &rec.Salt, &rec.PasswordProof,
		&rec.Active, &rec.Admin, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get user: %w", err)
	}
	return &rec, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, rec *user.Record) error {
	const q = `
		INSERT INTO users (name, email, salt, password_proof, active, admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, q,
		rec.Name, rec.Email, rec.Salt, rec.PasswordProof,
		rec.Active, rec.Admin, rec.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return user.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("repository: create user: %w", err)
	}
	return nil
}

func (r *UserRepository) ActivateUser(ctx context.Context, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET active = true WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("repository: activate user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetAdmin(ctx context.Context, name string, admin bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET admin = $2 WHERE name = $1`, name, admin)
	if err != nil {
		return fmt.Errorf("repository: set admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, name, salt, proof string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET salt = $2, password_proof = $3 WHERE name = $1`,
		name, salt, proof,
	)
	if err != nil {
		return fmt.Errorf("repository: update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}
