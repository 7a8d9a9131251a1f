package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReplayRepository stores replay chunks for finished and in-flight games.
// Chunks are newline-delimited JSON events, keyed by game and the sequence
// number of the first event they contain.
type ReplayRepository struct {
	pool *pgxpool.Pool
}

func NewReplayRepository(pool *pgxpool.Pool) *ReplayRepository {
	return &ReplayRepository{pool: pool}
}

// AppendReplayChunk persists one flushed chunk.
func (r *ReplayRepository) AppendReplayChunk(ctx context.Context, gameID string, firstSeq uint64, chunk []byte) error {
	const q = `
		INSERT INTO replay_chunks (game_id, first_seq, data, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (game_id, first_seq) DO NOTHING`

	if _, err := r.pool.Exec(ctx, q, gameID, int64(firstSeq), chunk); err != nil {
		return fmt.Errorf("repository: append replay chunk: %w", err)
	}
	return nil
}

// LoadReplay returns the concatenated chunks of a game's replay in sequence
// order.
func (r *ReplayRepository) LoadReplay(ctx context.Context, gameID string) ([]byte, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT data FROM replay_chunks WHERE game_id = $1 ORDER BY first_seq`, gameID)
	if err != nil {
		return nil, fmt.Errorf("repository: load replay: %w", err)
	}
	defer rows.Close()

	var out []byte
	for rows.Next() {
		var chunk []byte
		if err := rows.Scan(&chunk); err != nil {
			return nil, fmt.Errorf("repository: load replay: %w", err)
		}
		out = append(out, chunk...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: load replay: %w", err)
	}
	return out, nil
}
