// internal/game/invariants.go
package game

import (
	"fmt"

	"github.com/google/uuid"
)

// CheckInvariants verifies the structural rules every accepted action must preserve.
// A non-nil result means the session is corrupt.
func (g *GameSession) CheckInvariants() error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.checkInvariantsLocked()
}

func (g *GameSession) checkInvariantsLocked() error {
	hosts := 0
	for _, p := range g.Players {
		if p.IsHost {
			hosts++
		}
	}
	if len(g.Players) > 0 && hosts != 1 {
		return fmt.Errorf("game %s has %d hosts", g.Code, hosts)
	}

	// Every card of the round is in exactly one place.
	seen := make(map[uuid.UUID]bool, g.universe)
	count := func(where string, id uuid.UUID) error {
		if seen[id] {
			return fmt.Errorf("card %s duplicated (found again in %s)", id, where)
		}
		seen[id] = true
		return nil
	}
	if g.Deck != nil {
		for _, c := range g.Deck.cards {
			if err := count("stock", c.ID); err != nil {
				return err
			}
		}
	}
	for _, c := range g.DiscardPile {
		if err := count("discard pile", c.ID); err != nil {
			return err
		}
	}
	for _, p := range g.Players {
		for _, c := range p.Hand {
			if err := count("hand of "+p.Name, c.ID); err != nil {
				return err
			}
		}
	}
	for _, m := range g.Melds {
		for _, c := range m.Cards {
			if err := count("meld "+m.ID.String(), c.ID); err != nil {
				return err
			}
		}
		if err := ValidateMeld(m.Kind, m.Cards); err != nil {
			return fmt.Errorf("meld %s on the table is invalid: %w", m.ID, err)
		}
	}
	if len(seen) != g.universe {
		return fmt.Errorf("card count %d does not match the %d dealt this round", len(seen), g.universe)
	}

	if g.State != StatePlaying {
		return nil
	}
	if len(g.Turn.Order) != len(g.Players) {
		return fmt.Errorf("turn order has %d seats for %d players", len(g.Turn.Order), len(g.Players))
	}
	for i, p := range g.Players {
		if g.Turn.Order[i] != p.ID {
			return fmt.Errorf("turn order changed at seat %d", i)
		}
	}
	if g.Turn.CurrentPlayer() == uuid.Nil {
		return fmt.Errorf("no current player while playing")
	}
	if g.Turn.Phase == PhaseAwaitingDiscard && g.Turn.LastAction != LastActionDrew {
		return fmt.Errorf("awaiting discard without a draw this turn")
	}
	return nil
}
