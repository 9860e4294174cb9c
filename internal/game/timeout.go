// internal/game/timeout.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// scheduleNextTurnTimer restarts the turn timer for the current player if TurnDuration > 0.
// Assumes lock is held.
func (g *GameSession) scheduleNextTurnTimer() {
	g.stopTurnTimer()
	if g.TurnDuration <= 0 || g.State != StatePlaying {
		return
	}
	playerID := g.Turn.CurrentPlayer()
	turnID := g.Turn.TurnID

	g.turnTimer = time.AfterFunc(g.TurnDuration, func() {
		g.Mu.Lock()
		defer g.Mu.Unlock()

		// A timer that outlived its turn must not act.
		if g.State != StatePlaying || g.Turn.TurnID != turnID || g.Turn.CurrentPlayer() != playerID {
			g.logger.WithFields(logrus.Fields{"player": playerID, "turn": turnID}).Debug("stale turn timer ignored")
			return
		}
		g.handleTimeout(playerID)
	})
}

func (g *GameSession) stopTurnTimer() {
	if g.turnTimer != nil {
		g.turnTimer.Stop()
		g.turnTimer = nil
	}
}

// Close stops any pending turn timer. The session must not be used afterwards.
func (g *GameSession) Close() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.stopTurnTimer()
}

// handleTimeout forces a move for a player who ran out of time: draw from the stock if they
// have not drawn, then discard the drawn card (or the last card in hand).
// Assumes lock is held.
func (g *GameSession) handleTimeout(playerID uuid.UUID) {
	g.logger.WithField("player", playerID).Info("player timed out")
	g.logAction(playerID, string(EventPlayerTimeout), map[string]interface{}{"turn": g.Turn.TurnID})
	g.fireEvent(GameEvent{Type: EventPlayerTimeout, User: &EventUser{ID: playerID}})

	if g.Turn.Phase == PhaseAwaitingDraw {
		if _, err := g.drawFromDeckLocked(playerID); err != nil {
			// Nothing left to draw; pass the turn.
			g.logger.WithError(err).WithField("player", playerID).Warn("forced draw failed, skipping turn")
			g.Turn.Advance()
			g.scheduleNextTurnTimer()
			g.fireStateEvent(EventStateUpdated, nil, nil)
			return
		}
	}

	p := g.getPlayerByID(playerID)
	if p == nil || len(p.Hand) == 0 {
		return
	}
	cardID := p.Hand[len(p.Hand)-1].ID
	if p.CardIndex(g.Turn.DrawnCardID) >= 0 {
		cardID = g.Turn.DrawnCardID
	}
	if err := g.discardLocked(playerID, cardID); err != nil {
		g.logger.WithError(err).WithField("player", playerID).Warn("forced discard failed, skipping turn")
		g.Turn.Advance()
		g.scheduleNextTurnTimer()
		g.fireStateEvent(EventStateUpdated, nil, nil)
	}
}
