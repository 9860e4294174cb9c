// internal/game/events.go
package game

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zionscheck/internal/models"
	"github.com/sirupsen/logrus"
)

// GameEventType is an enum-like type for broadcasting game actions.
type GameEventType string

const (
	EventGameCreated        GameEventType = "game_created"
	EventStateUpdated       GameEventType = "state_updated"
	EventPlayerJoined       GameEventType = "player_joined"
	EventRoundStarted       GameEventType = "round_started"
	EventRoundEnded         GameEventType = "round_ended"
	EventGameOver           GameEventType = "game_over"
	EventActionRejected     GameEventType = "action_rejected" // issuer only
	EventPlayerDrew         GameEventType = "player_drew"
	EventPlayerMelded       GameEventType = "player_melded"
	EventPlayerExtendedMeld GameEventType = "player_extended_meld"
	EventPlayerDiscarded    GameEventType = "player_discarded"
	EventDeckRecycled       GameEventType = "deck_recycled"
	EventPlayerTimeout      GameEventType = "player_timeout"
	EventRulesUpdated       GameEventType = "rules_updated"
)

// EventUser identifies the acting player.
type EventUser struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
}

// EventCard is a face-up card attached to a public notice.
type EventCard struct {
	ID    uuid.UUID `json:"id"`
	Rank  string    `json:"rank,omitempty"`
	Suit  string    `json:"suit,omitempty"`
	Value int       `json:"value,omitempty"`
}

// EventError is the body of an action_rejected event.
type EventError struct {
	PlayerID uuid.UUID `json:"playerId"`
	Kind     ErrorKind `json:"errorKind"`
	Message  string    `json:"message"`
}

// GameEvent holds data about an event that can be broadcast to the clients in a consistent format.
// Events carrying State are always addressed to a single viewer.
type GameEvent struct {
	Type     GameEventType `json:"type"`
	GameCode string        `json:"gameCode,omitempty"`
	User     *EventUser    `json:"user,omitempty"`
	Card     *EventCard    `json:"card,omitempty"`
	Meld     *MeldView     `json:"meld,omitempty"`
	State    *SessionView  `json:"state,omitempty"`
	WinnerID *uuid.UUID    `json:"winnerId,omitempty"`
	Error    *EventError   `json:"error,omitempty"`

	Payload map[string]interface{} `json:"payload,omitempty"`
}

func buildEventCard(c *models.Card) *EventCard {
	if c == nil {
		return nil
	}
	return &EventCard{ID: c.ID, Rank: string(c.Rank), Suit: string(c.Suit), Value: CardValue(c)}
}

// fireEvent broadcasts an event to every client of the session. Assumes lock is held.
func (g *GameSession) fireEvent(ev GameEvent) {
	ev.GameCode = g.Code
	if g.BroadcastFn != nil {
		g.BroadcastFn(ev)
	}
}

// fireEventToPlayer sends an event to one player only. Assumes lock is held.
func (g *GameSession) fireEventToPlayer(playerID uuid.UUID, ev GameEvent) {
	ev.GameCode = g.Code
	if g.BroadcastToPlayerFn != nil {
		g.BroadcastToPlayerFn(playerID, ev)
	}
}

// fireStateEvent sends evType to every player with that player's own view of the session.
// Assumes lock is held.
func (g *GameSession) fireStateEvent(evType GameEventType, winnerID *uuid.UUID, payload map[string]interface{}) {
	for _, p := range g.Players {
		view := g.viewLocked(p.ID)
		g.fireEventToPlayer(p.ID, GameEvent{
			Type:     evType,
			State:    &view,
			WinnerID: winnerID,
			Payload:  payload,
		})
	}
}

// reject reports err to the issuing player only and returns it unchanged. Assumes lock is held.
func (g *GameSession) reject(playerID uuid.UUID, err error) error {
	kind := KindOf(err)
	if kind == "" {
		kind = KindInvalidAction
	}
	msg := err.Error()
	var ge *GameError
	if errors.As(err, &ge) && ge.Message != "" {
		msg = ge.Message
	}
	g.logger.WithFields(logrus.Fields{
		"player": playerID,
		"kind":   kind,
	}).Debugf("action rejected: %s", msg)
	g.fireEventToPlayer(playerID, GameEvent{
		Type:  EventActionRejected,
		Error: &EventError{PlayerID: playerID, Kind: kind, Message: msg},
	})
	return err
}
