package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardfree/card-server-go/internal/user"
)

// ModerationRepository persists bans in the bans table.
type ModerationRepository struct {
	pool *pgxpool.Pool
}

func NewModerationRepository(pool *pgxpool.Pool) *ModerationRepository {
	return &ModerationRepository{pool: pool}
}

// ActiveBan returns the most recent unexpired ban for the user, or nil. A
// NULL until column means permanent.
func (r *ModerationRepository) ActiveBan(ctx context.Context, username string) (*user.Ban, error) {
	const q = `
		SELECT username, reason, banned_by, until
		FROM bans
		WHERE username = $1 AND (until IS NULL OR until > now())
		ORDER BY created_at DESC
		LIMIT 1`

	var ban user.Ban
	var until *time.Time
	err := r.pool.QueryRow(ctx, q, username).Scan(&ban.Username, &ban.Reason, &ban.BannedBy, &until)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: active ban: %w", err)
	}
	if until != nil {
		ban.Until = *until
	}
	return &ban, nil
}

func (r *ModerationRepository) AddBan(ctx context.Context, ban user.Ban) error {
	const q = `
		INSERT INTO bans (username, reason, banned_by, until, created_at)
		VALUES ($1, $2, $3, $4, now())`

	var until *time.Time
	if !ban.Until.IsZero() {
		until = &ban.Until
	}
	if _, err := r.pool.Exec(ctx, q, ban.Username, ban.Reason, ban.BannedBy, until); err != nil {
		return fmt.Errorf("repository: add ban: %w", err)
	}
	return nil
}
