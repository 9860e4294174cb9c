package models

import "github.com/google/uuid"

// Player is a seat in a game session. ID is issued by the session and stays stable
// across reconnects.
type Player struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Hand        []*Card   `json:"-"`
	Score       int       `json:"score"`
	RoundScores []int     `json:"roundScores"`
	Ready       bool      `json:"ready"`
	IsHost      bool      `json:"isHost"`
	Connected   bool      `json:"connected"`
}

// CardIndex returns the position of cardID in the player's hand, or -1.
func (p *Player) CardIndex(cardID uuid.UUID) int {
	for i, c := range p.Hand {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}
