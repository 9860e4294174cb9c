// internal/game/deck.go
package game

import (
	"math/rand"

	"github.com/jason-s-yu/zionscheck/internal/models"
)

const (
	// DeckCopies is how many standard 52-card decks make up the round universe.
	DeckCopies = 2
	// JokersPerDeck is the number of jokers shuffled in with each standard deck.
	JokersPerDeck = 2
	// UniverseSize is the total number of cards built for every round (104 + 4).
	UniverseSize = DeckCopies * (52 + JokersPerDeck)
)

// Deck is the stock: an ordered sequence of cards consumed from the front.
type Deck struct {
	cards []*models.Card
}

// CheckDeal fails if the round is unknown or there are not enough cards to deal every
// player the round's hand size plus one upcard.
func CheckDeal(round, playerCount int) error {
	contract, err := ContractFor(round)
	if err != nil {
		return err
	}
	if playerCount*contract.HandSize+1 > UniverseSize {
		return newError(KindDeckExhausted, "%d players cannot be dealt %d cards from %d", playerCount, contract.HandSize, UniverseSize)
	}
	return nil
}

// BuildDeck constructs the full card universe for a round and shuffles it.
// It fails wherever CheckDeal does.
func BuildDeck(round, playerCount int, ids IDGenerator, rng *rand.Rand) (*Deck, error) {
	if err := CheckDeal(round, playerCount); err != nil {
		return nil, err
	}

	cards := make([]*models.Card, 0, UniverseSize)
	for copyIdx := 0; copyIdx < DeckCopies; copyIdx++ {
		for _, suit := range models.Suits {
			for _, rank := range models.Ranks {
				cards = append(cards, &models.Card{ID: ids.NewID(), Suit: suit, Rank: rank})
			}
		}
		for j := 0; j < JokersPerDeck; j++ {
			cards = append(cards, &models.Card{ID: ids.NewID(), Suit: models.SuitJoker})
		}
	}

	d := &Deck{cards: cards}
	d.Shuffle(rng)
	return d, nil
}

// NewDeckFrom wraps an existing card order, used when restoring a snapshot.
func NewDeckFrom(cards []*models.Card) *Deck {
	cp := make([]*models.Card, len(cards))
	copy(cp, cards)
	return &Deck{cards: cp}
}

// Shuffle is an unbiased Fisher-Yates shuffle of the remaining stock.
func (d *Deck) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Len returns the number of cards left in the stock.
func (d *Deck) Len() int {
	return len(d.cards)
}

// Cards returns a copy of the stock in draw order.
func (d *Deck) Cards() []*models.Card {
	cp := make([]*models.Card, len(d.cards))
	copy(cp, d.cards)
	return cp
}

// Deal hands out size cards to each of n hands, one card at a time round the table.
// On DeckExhausted nothing is removed.
func (d *Deck) Deal(n, size int) ([][]*models.Card, error) {
	if n <= 0 || size < 0 {
		return nil, newError(KindInvalidAction, "cannot deal %d hands of %d", n, size)
	}
	if n*size > len(d.cards) {
		return nil, newError(KindDeckExhausted, "need %d cards, stock has %d", n*size, len(d.cards))
	}
	hands := make([][]*models.Card, n)
	for i := range hands {
		hands[i] = make([]*models.Card, 0, size)
	}
	for c := 0; c < size; c++ {
		for h := 0; h < n; h++ {
			hands[h] = append(hands[h], d.cards[0])
			d.cards = d.cards[1:]
		}
	}
	return hands, nil
}

// Draw removes and returns the front card.
func (d *Deck) Draw() (*models.Card, error) {
	if len(d.cards) == 0 {
		return nil, newError(KindDeckExhausted, "the stock is empty")
	}
	c := d.cards[0]
	d.cards = d.cards[1:]
	return c, nil
}

// Recycle appends cards to the stock and reshuffles it.
func (d *Deck) Recycle(cards []*models.Card, rng *rand.Rand) {
	d.cards = append(d.cards, cards...)
	d.Shuffle(rng)
}
