// internal/game/game_test.go
package game

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zionscheck/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []GameEvent               // Events sent to everyone
	playerEvents map[uuid.UUID][]GameEvent // Events sent to specific players
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		playerEvents: make(map[uuid.UUID][]GameEvent),
	}
}

func (mb *mockBroadcaster) broadcastFn(ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToPlayerFn(playerID uuid.UUID, ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = []GameEvent{}
	mb.playerEvents = make(map[uuid.UUID][]GameEvent)
}

func (mb *mockBroadcaster) getLastPlayerEvent(playerID uuid.UUID) *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	events, ok := mb.playerEvents[playerID]
	if !ok || len(events) == 0 {
		return nil
	}
	return &events[len(events)-1]
}

// playerEventsOfType returns the events of type t sent privately to playerID.
func (mb *mockBroadcaster) playerEventsOfType(playerID uuid.UUID, t GameEventType) []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []GameEvent
	for _, ev := range mb.playerEvents[playerID] {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (mb *mockBroadcaster) publicEventsOfType(t GameEventType) []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []GameEvent
	for _, ev := range mb.allEvents {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestSession(t *testing.T, rules *HouseRules) (*GameSession, *mockBroadcaster) {
	t.Helper()
	r := DefaultHouseRules()
	if rules != nil {
		r = *rules
	}
	g := NewGameSession("TEST01", SessionOptions{
		Rules:  &r,
		IDs:    NewSequentialIDs(t.Name()),
		Rand:   rand.New(rand.NewSource(42)),
		Logger: quietLogger(),
	})
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn
	return g, mb
}

// setupTestGame seats numPlayers, readies them all, and returns with round 1 in progress.
func setupTestGame(t *testing.T, numPlayers int, rules *HouseRules) (*GameSession, []*models.Player, *mockBroadcaster) {
	t.Helper()
	g, mb := newTestSession(t, rules)
	players := make([]*models.Player, numPlayers)
	for i := 0; i < numPlayers; i++ {
		p, err := g.Join(fmt.Sprintf("player%d", i+1))
		require.NoError(t, err)
		players[i] = p
	}
	for _, p := range players {
		require.NoError(t, g.SetReady(p.ID, true))
	}
	require.Equal(t, StatePlaying, g.State, "Game should start once everyone is ready")
	require.Equal(t, 1, g.Round)
	mb.clear()
	return g, players, mb
}

func matchesLabel(c *models.Card, label string) bool {
	if label == string(models.SuitJoker) {
		return c.Wild()
	}
	return !c.Wild() && c.String() == label
}

// takeCard removes a card matching label from the stock, the discard pile, or another hand.
// A card taken from a hand is replaced with one from the stock.
func takeCard(t *testing.T, g *GameSession, label string, owner *models.Player) *models.Card {
	t.Helper()
	for i, c := range g.Deck.cards {
		if matchesLabel(c, label) {
			g.Deck.cards = append(g.Deck.cards[:i:i], g.Deck.cards[i+1:]...)
			return c
		}
	}
	for i, c := range g.DiscardPile {
		if matchesLabel(c, label) {
			g.DiscardPile = append(g.DiscardPile[:i:i], g.DiscardPile[i+1:]...)
			return c
		}
	}
	for _, p := range g.Players {
		if p == owner {
			continue
		}
		for i, c := range p.Hand {
			if matchesLabel(c, label) {
				p.Hand[i] = g.Deck.cards[0]
				g.Deck.cards = g.Deck.cards[1:]
				return c
			}
		}
	}
	t.Fatalf("no %s left to rig", label)
	return nil
}

// rigHand swaps the player's hand for cards matching labels. The old hand goes back to the
// bottom of the stock, so the round's card count is unchanged.
func rigHand(t *testing.T, g *GameSession, playerID uuid.UUID, labels ...string) []*models.Card {
	t.Helper()
	p := g.getPlayerByID(playerID)
	require.NotNil(t, p)
	g.Deck.cards = append(g.Deck.cards, p.Hand...)
	p.Hand = nil
	for _, s := range labels {
		p.Hand = append(p.Hand, takeCard(t, g, s, p))
	}
	require.NoError(t, g.checkInvariantsLocked())
	return p.Hand
}

// stackStock puts cards matching labels on top of the stock in the given order.
func stackStock(t *testing.T, g *GameSession, labels ...string) {
	t.Helper()
	top := make([]*models.Card, 0, len(labels))
	for _, s := range labels {
		top = append(top, takeCard(t, g, s, nil))
	}
	g.Deck.cards = append(top, g.Deck.cards...)
}

func ids(cards ...*models.Card) []uuid.UUID {
	out := make([]uuid.UUID, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func handOf(g *GameSession, playerID uuid.UUID) []*models.Card {
	return g.getPlayerByID(playerID).Hand
}

func TestJoinAndAutoStart(t *testing.T) {
	g, mb := newTestSession(t, nil)

	host, err := g.Join("alice")
	require.NoError(t, err)
	assert.True(t, host.IsHost)
	bob, err := g.Join("bob")
	require.NoError(t, err)
	assert.False(t, bob.IsHost)

	require.NoError(t, g.SetReady(host.ID, true))
	assert.Equal(t, StateWaiting, g.State, "One ready player must not start the game")

	require.NoError(t, g.SetReady(bob.ID, true))
	assert.Equal(t, StatePlaying, g.State)
	assert.Equal(t, 1, g.Round)
	assert.Equal(t, host.ID, g.Turn.CurrentPlayer(), "Round 1 opens with the first seat")
	assert.Equal(t, PhaseAwaitingDraw, g.Turn.Phase)

	for _, p := range g.Players {
		assert.Len(t, p.Hand, 6)
	}
	assert.Len(t, g.DiscardPile, 1, "Upcard starts the discard pile")
	assert.Equal(t, UniverseSize-12-1, g.Deck.Len())
	require.NoError(t, g.CheckInvariants())

	for _, p := range []*models.Player{host, bob} {
		evs := mb.playerEventsOfType(p.ID, EventRoundStarted)
		require.Len(t, evs, 1)
		require.NotNil(t, evs[0].State)
		for _, pv := range evs[0].State.Players {
			if pv.ID == p.ID {
				assert.Len(t, pv.Hand, 6, "Viewer sees their own hand")
			} else {
				assert.Empty(t, pv.Hand, "Other hands are hidden")
				assert.Equal(t, 6, pv.HandSize)
			}
		}
	}
}

func TestJoinRejected(t *testing.T) {
	rules := DefaultHouseRules()
	rules.MaxPlayers = 2
	g, _ := newTestSession(t, &rules)

	_, err := g.Join("")
	assert.ErrorIs(t, err, ErrInvalidAction)

	a, err := g.Join("a")
	require.NoError(t, err)
	b, err := g.Join("b")
	require.NoError(t, err)
	_, err = g.Join("c")
	assert.ErrorIs(t, err, ErrGameFull)

	require.NoError(t, g.SetReady(a.ID, true))
	require.NoError(t, g.SetReady(b.ID, true))

	g.HouseRules.MaxPlayers = 6
	_, err = g.Join("late")
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestSetReadyToggle(t *testing.T) {
	g, _ := newTestSession(t, nil)
	a, _ := g.Join("a")
	b, _ := g.Join("b")

	require.NoError(t, g.SetReady(a.ID, true))
	require.NoError(t, g.SetReady(a.ID, false))
	require.NoError(t, g.SetReady(b.ID, true))
	assert.Equal(t, StateWaiting, g.State)

	assert.ErrorIs(t, g.SetReady(uuid.New(), true), ErrPlayerNotFound)
}

func TestSetReadyRejectsUndealableTable(t *testing.T) {
	g, mb := newTestSession(t, nil)
	a, _ := g.Join("a")
	b, _ := g.Join("b")
	// More seats than the universe can deal; Join caps this, so seat them directly.
	for i := 0; i < 17; i++ {
		g.Players = append(g.Players, &models.Player{ID: uuid.New(), Name: fmt.Sprintf("extra%d", i), Hand: []*models.Card{}, Ready: true})
	}
	require.NoError(t, g.SetReady(a.ID, true))
	mb.clear()

	err := g.SetReady(b.ID, true)
	assert.ErrorIs(t, err, ErrDeckExhausted)
	assert.False(t, g.getPlayerByID(b.ID).Ready, "A rejected ready leaves the flag unchanged")
	assert.Equal(t, StateWaiting, g.State)
	assert.Equal(t, 0, g.Round)
	assert.Len(t, mb.playerEventsOfType(b.ID, EventActionRejected), 1)
	assert.Empty(t, mb.playerEventsOfType(a.ID, EventRoundStarted))
}

func TestUpdateRules(t *testing.T) {
	g, mb := newTestSession(t, nil)
	host, _ := g.Join("host")
	guest, _ := g.Join("guest")
	third, _ := g.Join("third")

	err := g.UpdateRules(guest.ID, map[string]interface{}{"maxPlayers": float64(4)})
	assert.ErrorIs(t, err, ErrNotHost)
	assert.ErrorIs(t, g.UpdateRules(uuid.New(), nil), ErrPlayerNotFound)

	err = g.UpdateRules(host.ID, map[string]interface{}{"maxPlayers": float64(4), "turnTimerSec": "fast"})
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Equal(t, DefaultHouseRules(), g.HouseRules, "Invalid rules change nothing")

	err = g.UpdateRules(host.ID, map[string]interface{}{"maxPlayers": float64(2)})
	assert.ErrorIs(t, err, ErrInvalidAction, "Cannot shrink below the seated players")
	assert.Equal(t, MaxSeats, g.HouseRules.MaxPlayers)

	mb.clear()
	require.NoError(t, g.UpdateRules(host.ID, map[string]interface{}{"maxPlayers": float64(3), "turnTimerSec": float64(30)}))
	assert.Equal(t, 3, g.HouseRules.MaxPlayers)
	assert.Equal(t, 30, g.HouseRules.TurnTimerSec)
	assert.Equal(t, 30*time.Second, g.TurnDuration)
	assert.True(t, g.HouseRules.StartWithUpcard, "Unset rules keep their value")
	for _, p := range []*models.Player{host, guest, third} {
		evs := mb.playerEventsOfType(p.ID, EventRulesUpdated)
		require.Len(t, evs, 1)
		assert.Equal(t, 3, evs[0].State.Rules.MaxPlayers)
	}

	_, err = g.Join("late")
	assert.ErrorIs(t, err, ErrGameFull)

	require.NoError(t, g.HandlePlayerAction(host.ID, models.GameAction{
		ActionType: models.ActionUpdateRules,
		Rules:      map[string]interface{}{"startWithUpcard": false, "turnTimerSec": float64(0)},
	}))
	assert.False(t, g.HouseRules.StartWithUpcard)
	assert.Zero(t, g.TurnDuration)

	for _, p := range []*models.Player{host, guest, third} {
		require.NoError(t, g.SetReady(p.ID, true))
	}
	require.Equal(t, StatePlaying, g.State)
	assert.Empty(t, g.DiscardPile, "Round starts without an upcard")
	assert.ErrorIs(t, g.UpdateRules(host.ID, map[string]interface{}{"maxPlayers": float64(4)}), ErrWrongPhase)
}

func TestTurnExclusivity(t *testing.T) {
	g, players, mb := setupTestGame(t, 3, nil)
	current, other := players[0], players[1]
	before := g.Snapshot()

	_, err := g.DrawFromDeck(other.ID)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	_, err = g.DrawFromDiscard(other.ID)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	err = g.Discard(other.ID, handOf(g, other.ID)[0].ID)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	_, err = g.LayMeld(other.ID, ids(handOf(g, other.ID)[:3]...), models.MeldSet)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	after := g.Snapshot()
	after.SavedAt = before.SavedAt
	assert.Equal(t, before, after, "Rejected actions must not change state")

	rejected := mb.playerEventsOfType(other.ID, EventActionRejected)
	require.Len(t, rejected, 4)
	assert.Equal(t, KindNotYourTurn, rejected[0].Error.Kind)
	assert.Equal(t, other.ID, rejected[0].Error.PlayerID)
	assert.Empty(t, mb.playerEventsOfType(current.ID, EventActionRejected), "Rejections go to the issuer only")
	assert.Empty(t, mb.publicEventsOfType(EventActionRejected))
}

func TestDrawBeforeDiscard(t *testing.T) {
	g, players, _ := setupTestGame(t, 2, nil)
	p := players[0]

	err := g.Discard(p.ID, handOf(g, p.ID)[0].ID)
	assert.ErrorIs(t, err, ErrWrongPhase)
	assert.Len(t, handOf(g, p.ID), 6)

	drawn, err := g.DrawFromDeck(p.ID)
	require.NoError(t, err)
	assert.Len(t, handOf(g, p.ID), 7)
	assert.Equal(t, LastActionDrew, g.Turn.LastAction)
	assert.Equal(t, PhaseAwaitingDiscard, g.Turn.Phase)

	_, err = g.DrawFromDeck(p.ID)
	assert.ErrorIs(t, err, ErrAlreadyDrew)
	_, err = g.DrawFromDiscard(p.ID)
	assert.ErrorIs(t, err, ErrAlreadyDrew)
	assert.Len(t, handOf(g, p.ID), 7)

	err = g.Discard(p.ID, uuid.New())
	assert.ErrorIs(t, err, ErrCardNotInHand)

	require.NoError(t, g.Discard(p.ID, drawn.ID))
	require.NoError(t, g.CheckInvariants())
}

func TestTurnAdvance(t *testing.T) {
	g, players, mb := setupTestGame(t, 3, nil)

	for turn := 0; turn < 4; turn++ {
		i := turn % 3
		cur := players[i]
		require.Equal(t, cur.ID, g.Turn.CurrentPlayer())
		turnID := g.Turn.TurnID

		drawn, err := g.DrawFromDeck(cur.ID)
		require.NoError(t, err)
		require.NoError(t, g.Discard(cur.ID, drawn.ID))

		assert.Equal(t, players[(i+1)%3].ID, g.Turn.CurrentPlayer())
		assert.Equal(t, LastActionNone, g.Turn.LastAction)
		assert.Equal(t, PhaseAwaitingDraw, g.Turn.Phase)
		assert.Equal(t, turnID+1, g.Turn.TurnID)
		assert.Equal(t, drawn.ID, g.DiscardPile[len(g.DiscardPile)-1].ID)
		require.NoError(t, g.CheckInvariants())
	}

	drew := mb.publicEventsOfType(EventPlayerDrew)
	require.Len(t, drew, 4)
	assert.Nil(t, drew[0].Card, "Stock draws are not revealed publicly")
	assert.Len(t, mb.publicEventsOfType(EventPlayerDiscarded), 4)
}

func TestDrawFromDiscard(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	p := players[0]
	top := g.DiscardPile[len(g.DiscardPile)-1]

	card, err := g.DrawFromDiscard(p.ID)
	require.NoError(t, err)
	assert.Equal(t, top.ID, card.ID)
	assert.Empty(t, g.DiscardPile)
	assert.Equal(t, top.ID, g.Turn.DrawnCardID)

	drew := mb.publicEventsOfType(EventPlayerDrew)
	require.Len(t, drew, 1)
	require.NotNil(t, drew[0].Card)
	assert.Equal(t, top.ID, drew[0].Card.ID)

	rules := DefaultHouseRules()
	rules.StartWithUpcard = false
	g2, players2, _ := setupTestGame(t, 2, &rules)
	_, err = g2.DrawFromDiscard(players2[0].ID)
	assert.ErrorIs(t, err, ErrDiscardPileEmpty)
}

func TestStockExhaustion(t *testing.T) {
	t.Run("recycles discards", func(t *testing.T) {
		g, players, mb := setupTestGame(t, 2, nil)
		p := players[0]
		// Move the whole stock onto the discard pile.
		g.DiscardPile = append(g.DiscardPile, g.Deck.cards...)
		g.Deck.cards = nil
		top := g.DiscardPile[len(g.DiscardPile)-1]
		pileSize := len(g.DiscardPile)

		_, err := g.DrawFromDeck(p.ID)
		require.NoError(t, err)
		require.Len(t, g.DiscardPile, 1)
		assert.Equal(t, top.ID, g.DiscardPile[0].ID, "Top discard stays put")
		assert.Equal(t, pileSize-2, g.Deck.Len())
		assert.Len(t, mb.publicEventsOfType(EventDeckRecycled), 1)
		require.NoError(t, g.CheckInvariants())
	})

	t.Run("fails without recycling", func(t *testing.T) {
		rules := DefaultHouseRules()
		rules.ReshuffleDiscard = false
		g, players, _ := setupTestGame(t, 2, &rules)
		g.DiscardPile = append(g.DiscardPile, g.Deck.cards...)
		g.Deck.cards = nil

		_, err := g.DrawFromDeck(players[0].ID)
		assert.ErrorIs(t, err, ErrDeckExhausted)
		assert.Equal(t, StatePlaying, g.State, "An empty stock does not end the round")
		assert.Equal(t, PhaseAwaitingDraw, g.Turn.Phase)
	})
}

func TestLayMeld(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	p := players[0]
	hand := rigHand(t, g, p.ID, "7H", "7D", "JK", "2S", "5C", "9D")

	_, err := g.LayMeld(p.ID, ids(hand[0], hand[1], hand[3]), models.MeldSet)
	assert.ErrorIs(t, err, ErrMeldIllegal)
	assert.Len(t, handOf(g, p.ID), 6, "Failed meld leaves the hand untouched")

	_, err = g.LayMeld(p.ID, ids(hand[0], hand[1]), models.MeldSet)
	assert.ErrorIs(t, err, ErrMeldTooSmall)

	_, err = g.LayMeld(p.ID, []uuid.UUID{hand[0].ID, hand[0].ID, hand[1].ID}, models.MeldSet)
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = g.LayMeld(p.ID, []uuid.UUID{hand[0].ID, hand[1].ID, uuid.New()}, models.MeldSet)
	assert.ErrorIs(t, err, ErrCardNotInHand)

	_, err = g.LayMeld(p.ID, ids(hand[0], hand[1], hand[2]), "pair")
	assert.ErrorIs(t, err, ErrMeldIllegal)

	meld, err := g.LayMeld(p.ID, ids(hand[0], hand[1], hand[2]), models.MeldSet)
	require.NoError(t, err)
	assert.Equal(t, p.ID, meld.OwnerID)
	assert.Equal(t, 1, meld.Round)
	assert.Len(t, handOf(g, p.ID), 3)
	require.Len(t, g.Melds, 1)
	assert.Len(t, mb.publicEventsOfType(EventPlayerMelded), 1)
	require.NoError(t, g.CheckInvariants())
}

func TestAddToMeld(t *testing.T) {
	g, players, _ := setupTestGame(t, 2, nil)
	a, b := players[0], players[1]
	handA := rigHand(t, g, a.ID, "7H", "7D", "7C", "2S", "5C", "9D")
	meld, err := g.LayMeld(a.ID, ids(handA[0], handA[1], handA[2]), models.MeldSet)
	require.NoError(t, err)
	drawn, err := g.DrawFromDeck(a.ID)
	require.NoError(t, err)
	require.NoError(t, g.Discard(a.ID, drawn.ID))

	handB := rigHand(t, g, b.ID, "7S", "8S", "QD", "QH", "QC", "3D")
	_, err = g.DrawFromDeck(b.ID)
	require.NoError(t, err)

	err = g.AddToMeld(b.ID, meld.ID, handB[1].ID)
	assert.ErrorIs(t, err, ErrMeldIllegal)
	assert.True(t, g.getPlayerByID(b.ID).CardIndex(handB[1].ID) >= 0, "Card stays in hand on failure")

	err = g.AddToMeld(b.ID, uuid.New(), handB[0].ID)
	assert.ErrorIs(t, err, ErrMeldNotFound)

	require.NoError(t, g.AddToMeld(b.ID, meld.ID, handB[0].ID), "Any player may extend any meld")
	assert.Len(t, g.Melds[0].Cards, 4)
	assert.Equal(t, a.ID, g.Melds[0].OwnerID)

	// A set is full at four cards.
	handB = handOf(g, b.ID)
	err = g.AddToMeld(b.ID, meld.ID, handB[len(handB)-1].ID)
	assert.Error(t, err)
	require.NoError(t, g.CheckInvariants())
}

func TestRunArrangedOnTable(t *testing.T) {
	g, players, _ := setupTestGame(t, 2, nil)
	p := players[0]
	hand := rigHand(t, g, p.ID, "8S", "JK", "5S", "6S", "KD", "KH")

	meld, err := g.LayMeld(p.ID, ids(hand[0], hand[1], hand[2], hand[3]), models.MeldRun)
	require.NoError(t, err)
	require.Len(t, meld.Cards, 4)
	assert.Equal(t, "5S", meld.Cards[0].String())
	assert.Equal(t, "6S", meld.Cards[1].String())
	assert.True(t, meld.Cards[2].Wild(), "Joker fills the 7")
	assert.Equal(t, "8S", meld.Cards[3].String())
}

func TestMeldCannotStrandPlayer(t *testing.T) {
	g, players, _ := setupTestGame(t, 2, nil)
	p := players[0]
	rigHand(t, g, p.ID, "7H", "7D", "7C", "3S", "4S", "5S")
	stackStock(t, g, "6S")
	_, err := g.DrawFromDeck(p.ID)
	require.NoError(t, err)

	hand := handOf(g, p.ID)
	run := ids(hand[3], hand[4], hand[5], hand[6])
	_, err = g.LayMeld(p.ID, run, models.MeldRun)
	require.NoError(t, err, "A run is legal even though round 1 wants sets")

	hand = handOf(g, p.ID)
	require.Len(t, hand, 3)
	_, err = g.LayMeld(p.ID, ids(hand...), models.MeldSet)
	assert.ErrorIs(t, err, ErrContractNotSatisfied, "Melding everything without the contract would strand the player")
	assert.Len(t, handOf(g, p.ID), 3)
}

func TestGoingOutRequiresContract(t *testing.T) {
	g, players, _ := setupTestGame(t, 2, nil)
	p := players[0]
	_, err := g.DrawFromDeck(p.ID)
	require.NoError(t, err)
	hand := rigHand(t, g, p.ID, "KC")

	err = g.Discard(p.ID, hand[0].ID)
	assert.ErrorIs(t, err, ErrContractNotSatisfied)
	assert.Len(t, handOf(g, p.ID), 1)
	assert.Equal(t, StatePlaying, g.State)
}

func TestGoingOutOnlyByDiscard(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	p := players[0]
	hand := rigHand(t, g, p.ID, "7H", "7D", "7C", "9S", "9H", "9D")
	meld, err := g.LayMeld(p.ID, ids(hand[0], hand[1], hand[2]), models.MeldSet)
	require.NoError(t, err)

	hand = handOf(g, p.ID)
	_, err = g.LayMeld(p.ID, ids(hand...), models.MeldSet)
	assert.ErrorIs(t, err, ErrInvalidAction, "Contract met but laying the last cards skips the discard")
	assert.Len(t, handOf(g, p.ID), 3)
	assert.Equal(t, StatePlaying, g.State)
	assert.Len(t, mb.playerEventsOfType(p.ID, EventActionRejected), 1)

	stackStock(t, g, "7S")
	drawn, err := g.DrawFromDeck(p.ID)
	require.NoError(t, err)
	hand = handOf(g, p.ID)
	_, err = g.LayMeld(p.ID, ids(hand[0], hand[1], hand[2]), models.MeldSet)
	require.NoError(t, err)
	require.Len(t, handOf(g, p.ID), 1)

	err = g.AddToMeld(p.ID, meld.ID, drawn.ID)
	assert.ErrorIs(t, err, ErrInvalidAction, "Extending with the last card skips the discard")
	assert.Len(t, handOf(g, p.ID), 1)
	assert.Len(t, meld.Cards, 3)
	assert.Equal(t, StatePlaying, g.State)
	require.NoError(t, g.CheckInvariants())

	require.NoError(t, g.Discard(p.ID, drawn.ID))
	assert.Equal(t, StateBetweenRounds, g.State)
	assert.Equal(t, p.ID, g.LastRoundWinner)
}

// goOutRoundOne plays a scripted round 1 in which players[0] goes out. It returns the penalty
// the other player should have taken.
func goOutRoundOne(t *testing.T, g *GameSession, players []*models.Player) int {
	t.Helper()
	p := players[0]
	hand := rigHand(t, g, p.ID, "7H", "7D", "7C", "9S", "9H", "9D")
	stackStock(t, g, "KC")
	drawn, err := g.DrawFromDeck(p.ID)
	require.NoError(t, err)

	_, err = g.LayMeld(p.ID, ids(hand[0], hand[1], hand[2]), models.MeldSet)
	require.NoError(t, err)
	_, err = g.LayMeld(p.ID, ids(hand[3], hand[4], hand[5]), models.MeldSet)
	require.NoError(t, err)
	require.NoError(t, g.CheckInvariants())

	penalty := 0
	for _, other := range players[1:] {
		penalty += HandValue(handOf(g, other.ID))
	}
	require.NoError(t, g.Discard(p.ID, drawn.ID))
	return penalty
}

func TestGoingOutEndsRound(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	a, b := players[0], players[1]
	penalty := goOutRoundOne(t, g, players)

	assert.Equal(t, StateBetweenRounds, g.State)
	assert.Equal(t, a.ID, g.LastRoundWinner)
	assert.Equal(t, []int{0}, g.getPlayerByID(a.ID).RoundScores)
	assert.Equal(t, []int{penalty}, g.getPlayerByID(b.ID).RoundScores)
	assert.Equal(t, penalty, g.getPlayerByID(b.ID).Score)
	assert.Nil(t, g.Deck)
	assert.Empty(t, g.Melds)
	assert.Empty(t, g.DiscardPile)
	assert.Empty(t, handOf(g, b.ID))
	require.NoError(t, g.CheckInvariants())

	for _, p := range players {
		evs := mb.playerEventsOfType(p.ID, EventRoundEnded)
		require.Len(t, evs, 1)
		require.NotNil(t, evs[0].WinnerID)
		assert.Equal(t, a.ID, *evs[0].WinnerID)
		assert.NotEmpty(t, evs[0].State.Standings)
	}

	_, err := g.DrawFromDeck(b.ID)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestStartNextRound(t *testing.T) {
	g, players, _ := setupTestGame(t, 3, nil)
	host, guest := players[0], players[1]

	assert.ErrorIs(t, g.StartNextRound(host.ID), ErrWrongPhase, "Cannot advance mid-round")
	goOutRoundOne(t, g, players)

	assert.ErrorIs(t, g.StartNextRound(guest.ID), ErrNotHost)
	assert.Equal(t, StateBetweenRounds, g.State)

	require.NoError(t, g.StartNextRound(host.ID))
	assert.Equal(t, StatePlaying, g.State)
	assert.Equal(t, 2, g.Round)
	assert.Equal(t, players[1].ID, g.Turn.CurrentPlayer(), "Opening seat rotates each round")
	for _, p := range g.Players {
		assert.Len(t, p.Hand, 7)
	}
	require.NoError(t, g.CheckInvariants())
}

func TestFinalRoundFinishesGame(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	a, b := players[0], players[1]
	goOutRoundOne(t, g, players)

	// Skip ahead to the last round with a clear leader.
	g.Round = FinalRound - 1
	g.getPlayerByID(a.ID).Score = 10
	g.getPlayerByID(b.ID).Score = 200
	require.NoError(t, g.StartNextRound(a.ID))
	require.Equal(t, FinalRound, g.Round)
	require.Equal(t, a.ID, g.Turn.CurrentPlayer())
	require.Len(t, handOf(g, a.ID), 12)

	hand := rigHand(t, g, a.ID,
		"3H", "4H", "5H", "6H",
		"8S", "9S", "10S", "JS",
		"JK", "QD", "KD", "AD",
	)
	stackStock(t, g, "2C")
	drawn, err := g.DrawFromDeck(a.ID)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := g.LayMeld(a.ID, ids(hand[i*4:i*4+4]...), models.MeldRun)
		require.NoError(t, err, "run %d", i)
	}
	require.NoError(t, g.Discard(a.ID, drawn.ID))

	assert.Equal(t, StateFinished, g.State)
	assert.Equal(t, a.ID, g.WinnerID)

	standings := g.Standings()
	require.Len(t, standings, 2)
	assert.Equal(t, a.ID, standings[0].PlayerID)
	assert.LessOrEqual(t, standings[0].Score, standings[1].Score)

	over := mb.playerEventsOfType(b.ID, EventGameOver)
	require.Len(t, over, 1)
	assert.Equal(t, a.ID, *over[0].WinnerID)
	assert.Equal(t, StateFinished, over[0].State.State)

	assert.ErrorIs(t, g.StartNextRound(a.ID), ErrWrongPhase)
}

func TestReorderHand(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	p := players[1]
	hand := handOf(g, p.ID)
	order := ids(hand...)
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}

	require.NoError(t, g.ReorderHand(p.ID, order), "Reordering is allowed out of turn")
	assert.Equal(t, order, ids(handOf(g, p.ID)...))
	last := mb.getLastPlayerEvent(p.ID)
	require.NotNil(t, last)
	assert.Equal(t, EventStateUpdated, last.Type)

	assert.ErrorIs(t, g.ReorderHand(p.ID, order[:3]), ErrInvalidAction)
	bad := append([]uuid.UUID{}, order...)
	bad[0] = bad[1]
	assert.ErrorIs(t, g.ReorderHand(p.ID, bad), ErrInvalidAction)
}

func TestHandlePlayerAction(t *testing.T) {
	g, players, _ := setupTestGame(t, 2, nil)
	p := players[0]

	require.NoError(t, g.HandlePlayerAction(p.ID, models.GameAction{ActionType: models.ActionDrawDeck}))
	card := handOf(g, p.ID)[0]
	require.NoError(t, g.HandlePlayerAction(p.ID, models.GameAction{ActionType: models.ActionDiscard, CardID: card.ID}))
	assert.Equal(t, players[1].ID, g.Turn.CurrentPlayer())

	err := g.HandlePlayerAction(p.ID, models.GameAction{ActionType: "call_rummy"})
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestConcurrentActionsAreExclusive(t *testing.T) {
	g, players, _ := setupTestGame(t, 3, nil)

	var wg sync.WaitGroup
	var drew atomic.Int32
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(p *models.Player) {
			defer wg.Done()
			if _, err := g.DrawFromDeck(p.ID); err == nil {
				drew.Add(1)
			}
		}(players[i%len(players)])
	}
	wg.Wait()
	assert.EqualValues(t, 1, drew.Load(), "Exactly one draw wins the turn")
	require.NoError(t, g.CheckInvariants())

	// Every seat races to discard its whole hand.
	var discarded atomic.Int32
	for _, p := range players {
		for _, c := range append([]*models.Card{}, handOf(g, p.ID)...) {
			wg.Add(1)
			go func(pid, cid uuid.UUID) {
				defer wg.Done()
				if err := g.Discard(pid, cid); err == nil {
					discarded.Add(1)
				}
			}(p.ID, c.ID)
		}
	}
	wg.Wait()
	assert.EqualValues(t, 1, discarded.Load(), "Exactly one discard ends the turn")
	assert.Equal(t, players[1].ID, g.Turn.CurrentPlayer())
	assert.Equal(t, PhaseAwaitingDraw, g.Turn.Phase)
	require.NoError(t, g.CheckInvariants())
}

// tryLaySet lays the first set the hand can form, natural cards first, then jokers.
func tryLaySet(g *GameSession, playerID uuid.UUID) bool {
	var jokers []*models.Card
	byRank := map[models.Rank][]*models.Card{}
	for _, c := range handOf(g, playerID) {
		if c.Wild() {
			jokers = append(jokers, c)
			continue
		}
		byRank[c.Rank] = append(byRank[c.Rank], c)
	}
	for _, rank := range models.Ranks {
		cards := append(append([]*models.Card{}, byRank[rank]...), jokers...)
		if len(byRank[rank]) == 0 || len(cards) < MinSetSize {
			continue
		}
		if _, err := g.LayMeld(playerID, ids(cards[:MinSetSize]...), models.MeldSet); err == nil {
			return true
		}
	}
	return false
}

// tryExtend adds the first card that fits onto a random meld on the table.
func tryExtend(g *GameSession, playerID uuid.UUID, rng *rand.Rand) bool {
	if len(g.Melds) == 0 {
		return false
	}
	meld := g.Melds[rng.Intn(len(g.Melds))]
	for _, c := range append([]*models.Card{}, handOf(g, playerID)...) {
		if g.AddToMeld(playerID, meld.ID, c.ID) == nil {
			return true
		}
	}
	return false
}

// Random legal play, melds included, must never break card conservation or the turn rules.
func TestConservationUnderRandomPlay(t *testing.T) {
	g, players, _ := setupTestGame(t, 3, nil)
	host := players[0].ID
	rng := rand.New(rand.NewSource(7))

	for step := 0; step < 400 && g.State != StateFinished; step++ {
		if g.State == StateBetweenRounds {
			require.NoError(t, g.StartNextRound(host), "step %d", step)
			require.NoError(t, g.CheckInvariants(), "step %d after next round", step)
		}
		cur := g.Turn.CurrentPlayer()
		var err error
		if rng.Intn(3) == 0 && len(g.DiscardPile) > 0 {
			_, err = g.DrawFromDiscard(cur)
		} else {
			_, err = g.DrawFromDeck(cur)
			if errors.Is(err, ErrDeckExhausted) && len(g.DiscardPile) > 0 {
				_, err = g.DrawFromDiscard(cur)
			}
		}
		require.NoError(t, err, "step %d", step)
		require.NoError(t, g.CheckInvariants(), "step %d after draw", step)

		for _, p := range players {
			if p.ID != cur {
				_, err := g.DrawFromDeck(p.ID)
				require.ErrorIs(t, err, ErrNotYourTurn)
			}
		}

		if rng.Intn(2) == 0 {
			tryLaySet(g, cur)
			require.NoError(t, g.CheckInvariants(), "step %d after lay", step)
		}
		if rng.Intn(2) == 0 {
			tryExtend(g, cur, rng)
			require.NoError(t, g.CheckInvariants(), "step %d after extend", step)
		}
		require.NotEmpty(t, handOf(g, cur), "step %d: melding never empties the hand", step)

		hand := handOf(g, cur)
		require.NoError(t, g.Discard(cur, hand[rng.Intn(len(hand))].ID), "step %d", step)
		require.NoError(t, g.CheckInvariants(), "step %d after discard", step)
	}
}
