// internal/game/turn.go
package game

import "github.com/google/uuid"

// TurnPhase is the step the current player is on.
type TurnPhase string

const (
	PhaseAwaitingDraw    TurnPhase = "awaiting_draw"
	PhaseAwaitingDiscard TurnPhase = "awaiting_discard"
)

// LastAction records what the current player last did this turn.
type LastAction string

const (
	LastActionNone      LastAction = "none"
	LastActionDrew      LastAction = "drew"
	LastActionDiscarded LastAction = "discarded"
)

// TurnController owns turn order and the draw/discard cycle for one round.
// It holds no cards; GameSession applies the card movement once a check passes.
type TurnController struct {
	Order      []uuid.UUID `json:"order"`
	Current    int         `json:"current"`
	Phase      TurnPhase   `json:"phase"`
	LastAction LastAction  `json:"lastAction"`
	// TurnID increases on every turn change and round start, across rounds.
	TurnID int `json:"turnId"`
	// DrawnCardID is the card taken this turn, if any.
	DrawnCardID uuid.UUID `json:"drawnCardId"`
}

// Reset starts a new round with the given seating and opening seat.
func (t *TurnController) Reset(order []uuid.UUID, opener int) {
	t.Order = append([]uuid.UUID(nil), order...)
	t.Current = 0
	if len(order) > 0 {
		t.Current = opener % len(order)
	}
	t.Phase = PhaseAwaitingDraw
	t.LastAction = LastActionNone
	t.DrawnCardID = uuid.Nil
	t.TurnID++
}

// CurrentPlayer returns the id of the player whose turn it is, or uuid.Nil.
func (t *TurnController) CurrentPlayer() uuid.UUID {
	if t.Current < 0 || t.Current >= len(t.Order) {
		return uuid.Nil
	}
	return t.Order[t.Current]
}

func (t *TurnController) checkTurn(playerID uuid.UUID) error {
	if cur := t.CurrentPlayer(); cur == uuid.Nil || cur != playerID {
		return newError(KindNotYourTurn, "it is not your turn")
	}
	return nil
}

// CheckCanDraw allows a draw only by the current player before they have drawn.
func (t *TurnController) CheckCanDraw(playerID uuid.UUID) error {
	if err := t.checkTurn(playerID); err != nil {
		return err
	}
	if t.Phase != PhaseAwaitingDraw {
		return newError(KindAlreadyDrew, "you already drew this turn")
	}
	return nil
}

// CheckCanDiscard allows a discard only by the current player after drawing.
func (t *TurnController) CheckCanDiscard(playerID uuid.UUID) error {
	if err := t.checkTurn(playerID); err != nil {
		return err
	}
	if t.Phase != PhaseAwaitingDiscard {
		return newError(KindWrongPhase, "draw a card before discarding")
	}
	return nil
}

// CheckCanMeld allows melding at any point of the current player's turn.
func (t *TurnController) CheckCanMeld(playerID uuid.UUID) error {
	return t.checkTurn(playerID)
}

// MarkDrew moves the turn to awaiting_discard.
func (t *TurnController) MarkDrew(cardID uuid.UUID) {
	t.Phase = PhaseAwaitingDiscard
	t.LastAction = LastActionDrew
	t.DrawnCardID = cardID
}

// Advance passes the turn to the next seat, wrapping around.
func (t *TurnController) Advance() {
	if len(t.Order) > 0 {
		t.Current = (t.Current + 1) % len(t.Order)
	}
	t.Phase = PhaseAwaitingDraw
	t.LastAction = LastActionNone
	t.DrawnCardID = uuid.Nil
	t.TurnID++
}

// MarkDiscarded records a discard that ended the round, so the turn does not advance.
func (t *TurnController) MarkDiscarded() {
	t.LastAction = LastActionDiscarded
}
