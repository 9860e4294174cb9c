// internal/database/snapshots.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/zionscheck/internal/game"
)

// SnapshotStore keeps session snapshots and round results in Postgres.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

var _ game.SnapshotStore = (*SnapshotStore)(nil)

func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// SaveSnapshot upserts the latest snapshot for the game.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap game.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	q := `
		INSERT INTO game_snapshots (code, state, round, snapshot, saved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code)
		DO UPDATE SET state = $2, round = $3, snapshot = $4, saved_at = $5
	`
	if _, err := s.pool.Exec(ctx, q, snap.Code, string(snap.State), snap.Round, data, snap.SavedAt); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.Code, err)
	}
	return nil
}

// LoadSnapshot reads the latest snapshot for code.
func (s *SnapshotStore) LoadSnapshot(ctx context.Context, code string) (*game.SessionSnapshot, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT snapshot FROM game_snapshots WHERE code = $1`, code).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", code, err)
	}
	var snap game.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", code, err)
	}
	return &snap, nil
}

// RecordRoundResult stores one finished round and closes out the game row after the final round.
func (s *SnapshotStore) RecordRoundResult(ctx context.Context, res game.RoundResult) error {
	scores, err := json.Marshal(res.Scores)
	if err != nil {
		return err
	}
	totals, err := json.Marshal(res.Totals)
	if err != nil {
		return err
	}
	err = beginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := upsertGameTx(ctx, tx, res.GameCode); err != nil {
			return err
		}
		q := `
			INSERT INTO round_results (game_code, round, winner_id, scores, totals, final, ended_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (game_code, round)
			DO UPDATE SET winner_id = $3, scores = $4, totals = $5, final = $6, ended_at = $7
		`
		if _, err := tx.Exec(ctx, q, res.GameCode, res.Round, res.WinnerID, scores, totals, res.Final, res.EndedAt); err != nil {
			return err
		}
		if !res.Final {
			return nil
		}
		_, err := tx.Exec(ctx, `
			UPDATE games
			SET status = 'completed', end_time = $2
			WHERE code = $1 AND status = 'in_progress'
		`, res.GameCode, res.EndedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("record round %d of %s: %w", res.Round, res.GameCode, err)
	}
	return nil
}
