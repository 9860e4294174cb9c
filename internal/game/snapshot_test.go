// internal/game/snapshot_test.go
package game

import (
	"encoding/json"
	"testing"

	"github.com/jason-s-yu/zionscheck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRestore(t *testing.T) {
	g, players, _ := setupTestGame(t, 3, nil)
	p := players[0]
	hand := rigHand(t, g, p.ID, "7H", "7D", "7C", "2S", "5C", "9D")
	_, err := g.LayMeld(p.ID, ids(hand[0], hand[1], hand[2]), models.MeldSet)
	require.NoError(t, err)
	_, err = g.DrawFromDeck(p.ID)
	require.NoError(t, err)

	data, err := json.Marshal(g.Snapshot())
	require.NoError(t, err)
	var snap SessionSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))

	restored, err := RestoreSession(snap, SessionOptions{Logger: quietLogger()})
	require.NoError(t, err)
	require.NoError(t, restored.CheckInvariants())

	assert.Equal(t, g.Code, restored.Code)
	assert.Equal(t, g.Round, restored.Round)
	assert.Equal(t, g.Turn.CurrentPlayer(), restored.Turn.CurrentPlayer())
	assert.Equal(t, PhaseAwaitingDiscard, restored.Turn.Phase)
	assert.Equal(t, g.Deck.Len(), restored.Deck.Len())
	require.Len(t, restored.Melds, 1)
	assert.Len(t, restored.Melds[0].Cards, 3)
	for _, orig := range g.Players {
		rp, ok := restored.PlayerByID(orig.ID)
		require.True(t, ok)
		assert.Equal(t, ids(orig.Hand...), ids(rp.Hand...))
		assert.Equal(t, orig.IsHost, rp.IsHost)
	}

	// The restored session keeps playing.
	cur := restored.Turn.CurrentPlayer()
	rp, _ := restored.PlayerByID(cur)
	require.NoError(t, restored.Discard(cur, rp.Hand[0].ID))
	require.NoError(t, restored.CheckInvariants())
}

func TestRestoreRejectsCorruptSnapshot(t *testing.T) {
	g, _, _ := setupTestGame(t, 2, nil)
	snap := g.Snapshot()
	// Duplicate a card between two hands.
	snap.Players[1].Hand[0] = snap.Players[0].Hand[0]

	_, err := RestoreSession(snap, SessionOptions{Logger: quietLogger()})
	assert.Error(t, err)
}
