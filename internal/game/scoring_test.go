// internal/game/scoring_test.go
package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zionscheck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardValue(t *testing.T) {
	values := map[string]int{
		"AS": 15, "KD": 10, "QH": 10, "JC": 10, "10S": 10, "7C": 7, "2H": 2, "JK": 25,
	}
	for label, want := range values {
		assert.Equal(t, want, CardValue(cardsOf(label)[0]), label)
	}
	assert.Equal(t, 0, CardValue(nil))
}

func TestHandValue(t *testing.T) {
	assert.Equal(t, 57, HandValue(cardsOf("AS", "KD", "7C", "JK")))
	assert.Equal(t, 0, HandValue(nil))
}

func TestRoundScores(t *testing.T) {
	winner := &models.Player{ID: uuid.New(), Hand: cardsOf("KD")}
	loser := &models.Player{ID: uuid.New(), Hand: cardsOf("AS", "KD", "7C", "JK")}
	empty := &models.Player{ID: uuid.New()}

	scores := RoundScores([]*models.Player{winner, loser, empty}, winner.ID)
	assert.Equal(t, 0, scores[winner.ID], "The player who went out scores zero")
	assert.Equal(t, 57, scores[loser.ID])
	assert.Equal(t, 0, scores[empty.ID])
}

func TestStandings(t *testing.T) {
	a := &models.Player{ID: uuid.New(), Name: "a", Score: 40}
	b := &models.Player{ID: uuid.New(), Name: "b", Score: 12}
	c := &models.Player{ID: uuid.New(), Name: "c", Score: 40}
	d := &models.Player{ID: uuid.New(), Name: "d", Score: 90}

	got := Standings([]*models.Player{a, b, c, d})
	require.Len(t, got, 4)
	assert.Equal(t, []string{"b", "a", "c", "d"}, []string{got[0].Name, got[1].Name, got[2].Name, got[3].Name})
	assert.Equal(t, []int{1, 2, 2, 4}, []int{got[0].Rank, got[1].Rank, got[2].Rank, got[3].Rank})
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Score, got[i].Score)
	}
}
