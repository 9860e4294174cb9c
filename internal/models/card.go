// internal/models/card.go
package models

import "github.com/google/uuid"

// Suit is the suit of a card. Jokers carry SuitJoker and no rank.
type Suit string

const (
	SuitHearts   Suit = "H"
	SuitDiamonds Suit = "D"
	SuitClubs    Suit = "C"
	SuitSpades   Suit = "S"
	SuitJoker    Suit = "JK"
)

// Suits lists the four standard suits in deck-building order.
var Suits = []Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades}

// Rank is the face rank of a non-joker card.
type Rank string

const (
	RankNone  Rank = ""
	RankAce   Rank = "A"
	RankTwo   Rank = "2"
	RankThree Rank = "3"
	RankFour  Rank = "4"
	RankFive  Rank = "5"
	RankSix   Rank = "6"
	RankSeven Rank = "7"
	RankEight Rank = "8"
	RankNine  Rank = "9"
	RankTen   Rank = "10"
	RankJack  Rank = "J"
	RankQueen Rank = "Q"
	RankKing  Rank = "K"
)

// Ranks lists the thirteen standard ranks, ace low.
var Ranks = []Rank{
	RankAce, RankTwo, RankThree, RankFour, RankFive, RankSix, RankSeven,
	RankEight, RankNine, RankTen, RankJack, RankQueen, RankKing,
}

// Ordinal returns the ace-low position of the rank (A=1 .. K=13), or 0 for RankNone
// and unknown ranks.
func (r Rank) Ordinal() int {
	for i, rank := range Ranks {
		if rank == r {
			return i + 1
		}
	}
	return 0
}

// Card is a single playing card. Cards are created once per round and never mutated.
type Card struct {
	ID   uuid.UUID `json:"id"`
	Suit Suit      `json:"suit"`
	Rank Rank      `json:"rank,omitempty"`
}

// Wild reports whether the card is a joker.
func (c *Card) Wild() bool {
	return c.Suit == SuitJoker
}

// String renders the card as rank+suit, e.g. "10H" or "JK".
func (c *Card) String() string {
	if c.Wild() {
		return string(SuitJoker)
	}
	return string(c.Rank) + string(c.Suit)
}
