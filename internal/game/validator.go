// internal/game/validator.go
package game

import (
	"github.com/jason-s-yu/zionscheck/internal/models"
)

const (
	MinSetSize = 3
	MaxSetSize = 4
	MinRunSize = 4
	// MaxRunSize is a full suit; a run never wraps from K back to A.
	MaxRunSize = 13
)

// aceMode bounds the values a run may occupy. Ace is either low (1) or high (14).
type aceMode struct {
	aceValue int
	lb, ub   int
}

var aceModes = []aceMode{
	{aceValue: 1, lb: 1, ub: 13},
	{aceValue: 14, lb: 2, ub: 14},
}

func (m aceMode) value(r models.Rank) int {
	if r == models.RankAce {
		return m.aceValue
	}
	return r.Ordinal()
}

// IsValidSet reports whether cards form a legal set.
func IsValidSet(cards []*models.Card) bool {
	return validateSet(cards) == nil
}

// IsValidRun reports whether cards form a legal run.
func IsValidRun(cards []*models.Card) bool {
	return validateRun(cards) == nil
}

// ValidateMeld checks cards against the rules for kind and returns a MeldTooSmall or
// MeldIllegal error describing the first problem found.
func ValidateMeld(kind models.MeldKind, cards []*models.Card) error {
	switch kind {
	case models.MeldSet:
		return validateSet(cards)
	case models.MeldRun:
		return validateRun(cards)
	}
	return newError(KindMeldIllegal, "unknown meld kind %q", kind)
}

func naturals(cards []*models.Card) ([]*models.Card, error) {
	out := make([]*models.Card, 0, len(cards))
	for _, c := range cards {
		if c == nil {
			return nil, newError(KindMeldIllegal, "meld contains an empty card")
		}
		if c.Wild() {
			continue
		}
		if c.Rank.Ordinal() == 0 {
			return nil, newError(KindMeldIllegal, "card %s has no rank", c.ID)
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, newError(KindMeldIllegal, "a meld needs at least one natural card")
	}
	return out, nil
}

func validateSet(cards []*models.Card) error {
	if len(cards) < MinSetSize {
		return newError(KindMeldTooSmall, "a set needs at least %d cards, got %d", MinSetSize, len(cards))
	}
	if len(cards) > MaxSetSize {
		return newError(KindMeldIllegal, "a set holds at most %d cards, got %d", MaxSetSize, len(cards))
	}
	nat, err := naturals(cards)
	if err != nil {
		return err
	}
	rank := nat[0].Rank
	for _, c := range nat[1:] {
		if c.Rank != rank {
			return newError(KindMeldIllegal, "set mixes ranks %s and %s", rank, c.Rank)
		}
	}
	return nil
}

func validateRun(cards []*models.Card) error {
	if len(cards) < MinRunSize {
		return newError(KindMeldTooSmall, "a run needs at least %d cards, got %d", MinRunSize, len(cards))
	}
	if len(cards) > MaxRunSize {
		return newError(KindMeldIllegal, "a run holds at most %d cards, got %d", MaxRunSize, len(cards))
	}
	nat, err := naturals(cards)
	if err != nil {
		return err
	}
	suit := nat[0].Suit
	seen := make(map[models.Rank]bool, len(nat))
	for _, c := range nat {
		if c.Suit != suit {
			return newError(KindMeldIllegal, "run mixes suits %s and %s", suit, c.Suit)
		}
		if seen[c.Rank] {
			return newError(KindMeldIllegal, "run repeats rank %s", c.Rank)
		}
		seen[c.Rank] = true
	}
	if _, ok := runWindow(nat, len(cards)); !ok {
		return newError(KindMeldIllegal, "ranks cannot form a %d-card sequence", len(cards))
	}
	return nil
}

// runWindow finds the lowest-value slot for a run of length n containing nat, preferring
// ace low. Extra jokers land at the high end where the suit allows it.
func runWindow(nat []*models.Card, n int) (aceMode, bool) {
	for _, m := range aceModes {
		minV, maxV := m.ub+1, m.lb-1
		for _, c := range nat {
			v := m.value(c.Rank)
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
		lo := max(m.lb, maxV-n+1)
		hi := min(minV, m.ub-n+1)
		if lo <= hi {
			return aceMode{aceValue: m.aceValue, lb: hi, ub: hi + n - 1}, true
		}
	}
	return aceMode{}, false
}

// ArrangeRun returns the run in ascending order with jokers in the gaps. Cards that do not
// form a valid run are returned as a copy in their original order.
func ArrangeRun(cards []*models.Card) []*models.Card {
	out := make([]*models.Card, len(cards))
	copy(out, cards)
	if validateRun(cards) != nil {
		return out
	}
	nat, _ := naturals(cards)
	w, _ := runWindow(nat, len(cards))

	slots := make([]*models.Card, len(cards))
	for _, c := range nat {
		slots[w.value(c.Rank)-w.lb] = c
	}
	var jokers []*models.Card
	for _, c := range cards {
		if c.Wild() {
			jokers = append(jokers, c)
		}
	}
	for i := range slots {
		if slots[i] == nil {
			slots[i] = jokers[0]
			jokers = jokers[1:]
		}
	}
	return slots
}
