// internal/game/snapshot.go
package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zionscheck/internal/models"
)

// SnapshotStore persists session snapshots and round results, keyed by game code.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap SessionSnapshot) error
	// LoadSnapshot returns ErrGameNotFound if no snapshot exists for code.
	LoadSnapshot(ctx context.Context, code string) (*SessionSnapshot, error)
	RecordRoundResult(ctx context.Context, res RoundResult) error
}

// ActionIndexer reports the highest action index already logged for a game, 0 if none.
// A restored session continues numbering after it so logged actions are never overwritten.
type ActionIndexer interface {
	MaxActionIndex(ctx context.Context, code string) (int, error)
}

// PlayerSnapshot is a player with the hand included, which models.Player hides from JSON.
type PlayerSnapshot struct {
	models.Player
	Hand []*models.Card `json:"hand"`
}

// SessionSnapshot is the full serializable state of a session.
type SessionSnapshot struct {
	Code            string           `json:"code"`
	Rules           HouseRules       `json:"rules"`
	State           SessionState     `json:"state"`
	Round           int              `json:"round"`
	Players         []PlayerSnapshot `json:"players"`
	Deck            []*models.Card   `json:"deck"`
	DiscardPile     []*models.Card   `json:"discardPile"`
	Melds           []*models.Meld   `json:"melds"`
	Turn            TurnController   `json:"turn"`
	LastRoundWinner uuid.UUID        `json:"lastRoundWinner"`
	WinnerID        uuid.UUID        `json:"winnerId"`
	ActionIndex     int              `json:"actionIndex"`
	CreatedAt       time.Time        `json:"createdAt"`
	SavedAt         time.Time        `json:"savedAt"`
}

// Snapshot captures the session state. The result shares no slices with the session.
func (g *GameSession) Snapshot() SessionSnapshot {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.snapshotLocked()
}

func (g *GameSession) snapshotLocked() SessionSnapshot {
	snap := SessionSnapshot{
		Code:            g.Code,
		Rules:           g.HouseRules,
		State:           g.State,
		Round:           g.Round,
		DiscardPile:     append([]*models.Card{}, g.DiscardPile...),
		Turn:            *g.Turn,
		LastRoundWinner: g.LastRoundWinner,
		WinnerID:        g.WinnerID,
		ActionIndex:     g.actionIndex,
		CreatedAt:       g.CreatedAt,
		SavedAt:         time.Now(),
	}
	snap.Turn.Order = append([]uuid.UUID{}, g.Turn.Order...)
	if g.Deck != nil {
		snap.Deck = g.Deck.Cards()
	}
	for _, p := range g.Players {
		ps := PlayerSnapshot{Player: *p, Hand: append([]*models.Card{}, p.Hand...)}
		ps.Player.Hand = nil
		ps.Player.RoundScores = append([]int{}, p.RoundScores...)
		snap.Players = append(snap.Players, ps)
	}
	for _, m := range g.Melds {
		cp := *m
		cp.Cards = append([]*models.Card{}, m.Cards...)
		snap.Melds = append(snap.Melds, &cp)
	}
	return snap
}

// RestoreSession rebuilds a session from a snapshot. Players come back disconnected and the
// turn timer is restarted for the current player.
func RestoreSession(snap SessionSnapshot, opts SessionOptions) (*GameSession, error) {
	opts.Rules = &snap.Rules
	g := NewGameSession(snap.Code, opts)

	g.Mu.Lock()
	defer g.Mu.Unlock()

	g.State = snap.State
	g.Round = snap.Round
	g.CreatedAt = snap.CreatedAt
	g.LastRoundWinner = snap.LastRoundWinner
	g.WinnerID = snap.WinnerID
	g.actionIndex = snap.ActionIndex
	turn := snap.Turn
	turn.Order = append([]uuid.UUID{}, snap.Turn.Order...)
	g.Turn = &turn

	for _, ps := range snap.Players {
		p := ps.Player
		p.Hand = append([]*models.Card{}, ps.Hand...)
		p.RoundScores = append([]int{}, ps.RoundScores...)
		p.Connected = false
		g.Players = append(g.Players, &p)
	}
	for _, m := range snap.Melds {
		cp := *m
		cp.Cards = append([]*models.Card{}, m.Cards...)
		g.Melds = append(g.Melds, &cp)
	}
	g.DiscardPile = append([]*models.Card{}, snap.DiscardPile...)
	if g.State == StatePlaying {
		g.Deck = NewDeckFrom(snap.Deck)
		g.universe = UniverseSize
	}

	if err := g.checkInvariantsLocked(); err != nil {
		return nil, err
	}
	g.scheduleNextTurnTimer()
	return g, nil
}
