// internal/game/round.go
package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zionscheck/internal/models"
	"github.com/sirupsen/logrus"
)

// RoundResult is the persisted outcome of one completed round.
type RoundResult struct {
	GameCode string            `json:"gameCode"`
	Round    int               `json:"round"`
	WinnerID uuid.UUID         `json:"winnerId"`
	Scores   map[uuid.UUID]int `json:"scores"`
	Totals   map[uuid.UUID]int `json:"totals"`
	Final    bool              `json:"final"`
	EndedAt  time.Time         `json:"endedAt"`
}

// StartNextRound begins the following round. Only the host may call it, and only between rounds.
func (g *GameSession) StartNextRound(playerID uuid.UUID) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	p := g.getPlayerByID(playerID)
	if p == nil {
		return g.reject(playerID, newError(KindPlayerNotFound, "player %s is not in game %s", playerID, g.Code))
	}
	if !p.IsHost {
		return g.reject(playerID, newError(KindNotHost, "only the host can start the next round"))
	}
	if g.State != StateBetweenRounds {
		return g.reject(playerID, newError(KindWrongPhase, "the next round can only start between rounds"))
	}
	if err := g.startRoundLocked(g.Round + 1); err != nil {
		return g.reject(playerID, err)
	}
	return nil
}

// startRoundLocked builds and deals a fresh deck for round and moves the session to playing.
// Nothing is changed if the deal fails. Assumes lock is held.
func (g *GameSession) startRoundLocked(round int) error {
	rc, err := ContractFor(round)
	if err != nil {
		return err
	}
	deck, err := BuildDeck(round, len(g.Players), g.ids, g.rng)
	if err != nil {
		return err
	}
	hands, err := deck.Deal(len(g.Players), rc.HandSize)
	if err != nil {
		return err
	}
	var discard []*models.Card
	if g.HouseRules.StartWithUpcard {
		up, err := deck.Draw()
		if err != nil {
			return err
		}
		discard = append(discard, up)
	}

	order := make([]uuid.UUID, len(g.Players))
	for i, p := range g.Players {
		p.Hand = hands[i]
		order[i] = p.ID
	}
	g.Deck = deck
	g.DiscardPile = discard
	g.Melds = []*models.Meld{}
	g.Round = round
	g.State = StatePlaying
	g.universe = UniverseSize
	g.LastRoundWinner = uuid.Nil
	g.Turn.Reset(order, (round-1)%len(order))
	g.touch()

	g.logger.WithFields(logrus.Fields{
		"round":  round,
		"opener": g.Turn.CurrentPlayer(),
	}).Info("round started")
	g.logAction(uuid.Nil, string(EventRoundStarted), map[string]interface{}{
		"contract": rc.Name,
		"handSize": rc.HandSize,
		"opener":   g.Turn.CurrentPlayer(),
	})
	g.fireStateEvent(EventRoundStarted, nil, map[string]interface{}{"contract": rc})
	g.scheduleNextTurnTimer()
	g.persistSnapshot()
	return nil
}

// endRoundLocked scores the round that winnerID just went out of, clears the per-round state,
// and moves to between_rounds, or finished after the final round. Assumes lock is held.
func (g *GameSession) endRoundLocked(winnerID uuid.UUID) {
	g.stopTurnTimer()

	scores := RoundScores(g.Players, winnerID)
	totals := make(map[uuid.UUID]int, len(g.Players))
	for _, p := range g.Players {
		p.Score += scores[p.ID]
		p.RoundScores = append(p.RoundScores, scores[p.ID])
		p.Hand = []*models.Card{}
		p.Ready = false
		totals[p.ID] = p.Score
	}
	g.Deck = nil
	g.DiscardPile = nil
	g.Melds = nil
	g.universe = 0
	g.LastRoundWinner = winnerID
	g.Turn.Phase = PhaseAwaitingDraw
	g.Turn.LastAction = LastActionNone
	g.Turn.DrawnCardID = uuid.Nil
	g.touch()

	final := g.Round >= FinalRound
	if final {
		g.State = StateFinished
		g.WinnerID = Standings(g.Players)[0].PlayerID
	} else {
		g.State = StateBetweenRounds
	}

	g.logger.WithFields(logrus.Fields{
		"round":  g.Round,
		"winner": winnerID,
	}).Info("round ended")
	g.logAction(winnerID, string(EventRoundEnded), map[string]interface{}{"scores": stringKeys(scores)})

	roundWinner := winnerID
	g.fireStateEvent(EventRoundEnded, &roundWinner, map[string]interface{}{"scores": stringKeys(scores)})
	if final {
		gameWinner := g.WinnerID
		g.logAction(gameWinner, string(EventGameOver), map[string]interface{}{"totals": stringKeys(totals)})
		g.fireStateEvent(EventGameOver, &gameWinner, map[string]interface{}{"standings": Standings(g.Players)})
	}

	g.persistRoundResult(RoundResult{
		GameCode: g.Code,
		Round:    g.Round,
		WinnerID: winnerID,
		Scores:   scores,
		Totals:   totals,
		Final:    final,
		EndedAt:  time.Now(),
	})
	g.persistSnapshot()
}

func stringKeys(m map[uuid.UUID]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k.String()] = v
	}
	return out
}

// persistSnapshot saves the current state in the background. Assumes lock is held.
func (g *GameSession) persistSnapshot() {
	if g.store == nil {
		return
	}
	snap := g.snapshotLocked()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.store.SaveSnapshot(ctx, snap); err != nil {
			g.logger.WithError(err).Warn("failed to save snapshot")
		}
	}()
}

// persistRoundResult records a finished round in the background. Assumes lock is held.
func (g *GameSession) persistRoundResult(res RoundResult) {
	if g.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.store.RecordRoundResult(ctx, res); err != nil {
			g.logger.WithError(err).WithField("round", res.Round).Warn("failed to record round result")
		}
	}()
}
