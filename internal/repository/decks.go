package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDeckNotFound is returned when a named deck does not exist.
var ErrDeckNotFound = errors.New("repository: deck not found")

// DeckRepository persists saved decks as ordered card-name lists.
type DeckRepository struct {
	pool *pgxpool.Pool
}

func NewDeckRepository(pool *pgxpool.Pool) *DeckRepository {
	return &DeckRepository{pool: pool}
}

// SaveDeck stores or replaces the named deck for a user.
func (r *DeckRepository) SaveDeck(ctx context.Context, username, name string, cards []string) error {
	const q = `
		INSERT INTO decks (username, name, cards, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (username, name)
		DO UPDATE SET cards = EXCLUDED.cards, updated_at = now()`

	if _, err := r.pool.Exec(ctx, q, username, name, cards); err != nil {
		return fmt.Errorf("repository: save deck: %w", err)
	}
	return nil
}

// LoadDeck returns the card list of the named deck.
func (r *DeckRepository) LoadDeck(ctx context.Context, username, name string) ([]string, error) {
	var cards []string
	err := r.pool.QueryRow(ctx,
		`SELECT cards FROM decks WHERE username = $1 AND name = $2`,
		username, name,
	).Scan(&cards)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDeckNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: load deck: %w", err)
	}
	return cards, nil
}

// ListDecks returns the user's deck names, sorted.
func (r *DeckRepository) ListDecks(ctx context.Context, username string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name FROM decks WHERE username = $1 ORDER BY name`, username)
	if err != nil {
		return nil, fmt.Errorf("repository: list decks: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("repository: list decks: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: list decks: %w", err)
	}
	return names, nil
}
