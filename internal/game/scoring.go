// internal/game/scoring.go
package game

import (
	"sort"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zionscheck/internal/models"
)

// Penalty values for cards left in hand when a round ends.
const (
	AceValue   = 15
	FaceValue  = 10
	JokerValue = 25
)

// CardValue returns the penalty value of a single card.
func CardValue(c *models.Card) int {
	if c == nil {
		return 0
	}
	if c.Wild() {
		return JokerValue
	}
	switch c.Rank {
	case models.RankAce:
		return AceValue
	case models.RankJack, models.RankQueen, models.RankKing:
		return FaceValue
	}
	return c.Rank.Ordinal()
}

// HandValue sums CardValue over cards.
func HandValue(cards []*models.Card) int {
	total := 0
	for _, c := range cards {
		total += CardValue(c)
	}
	return total
}

// RoundScores scores every player's remaining hand. The player who went out scores 0
// even if, through a forced end, cards remain.
func RoundScores(players []*models.Player, winnerID uuid.UUID) map[uuid.UUID]int {
	scores := make(map[uuid.UUID]int, len(players))
	for _, p := range players {
		if p.ID == winnerID {
			scores[p.ID] = 0
			continue
		}
		scores[p.ID] = HandValue(p.Hand)
	}
	return scores
}

// Standing is one row of the cumulative leaderboard.
type Standing struct {
	PlayerID uuid.UUID `json:"playerId"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	Rank     int       `json:"rank"`
}

// Standings orders players by cumulative score ascending. Ties keep turn order and share a rank.
func Standings(players []*models.Player) []Standing {
	out := make([]Standing, len(players))
	for i, p := range players {
		out[i] = Standing{PlayerID: p.ID, Name: p.Name, Score: p.Score}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out
}
