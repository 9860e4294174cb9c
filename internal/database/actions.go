// internal/database/actions.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/zionscheck/internal/cache"
	"github.com/jason-s-yu/zionscheck/internal/game"
)

// ActionStore writes the historian's action log.
type ActionStore struct {
	pool *pgxpool.Pool
}

func NewActionStore(pool *pgxpool.Pool) *ActionStore {
	return &ActionStore{pool: pool}
}

// InsertGameActions writes a batch of records in a single transaction.
func (s *ActionStore) InsertGameActions(ctx context.Context, records []cache.GameActionRecord) error {
	return beginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := insertGameActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertGameActionTx: %w", err)
			}
		}
		return nil
	})
}

// MarkGameAbandoned flags a game still in progress as abandoned.
func (s *ActionStore) MarkGameAbandoned(ctx context.Context, code string) error {
	return beginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE games
			SET status = 'abandoned', end_time = NOW()
			WHERE code = $1 AND status = 'in_progress'
		`, code)
		return err
	})
}

// MaxActionIndex returns the highest action index logged for a game, or 0 if none is.
func (s *ActionStore) MaxActionIndex(ctx context.Context, code string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(action_index), 0)
		FROM game_actions
		WHERE game_code = $1
	`, code).Scan(&n)
	return n, err
}

func upsertGameTx(ctx context.Context, tx pgx.Tx, code string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO games (code, status, start_time)
		VALUES ($1, 'in_progress', NOW())
		ON CONFLICT (code) DO NOTHING
	`, code)
	return err
}

// insertGameActionTx inserts one action, creating the game row on first sight. Replays of the
// same index are ignored.
func insertGameActionTx(ctx context.Context, tx pgx.Tx, rec cache.GameActionRecord) error {
	if err := upsertGameTx(ctx, tx, rec.GameCode); err != nil {
		return err
	}
	payload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO game_actions (game_code, action_index, actor_id, action_type, action_payload, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_code, action_index) DO NOTHING
	`, rec.GameCode, rec.ActionIndex, rec.ActorID, rec.ActionType, payload, time.UnixMilli(rec.Timestamp))
	if err != nil {
		return err
	}

	if rec.ActionType == string(game.EventGameOver) {
		_, err = tx.Exec(ctx, `
			UPDATE games
			SET status = 'completed', end_time = NOW()
			WHERE code = $1 AND status = 'in_progress'
		`, rec.GameCode)
	}
	return err
}
