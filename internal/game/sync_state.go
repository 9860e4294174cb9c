// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/zionscheck/internal/models"
)

// CardView is a face-up card as shown to a client.
type CardView struct {
	ID    uuid.UUID `json:"id"`
	Suit  string    `json:"suit"`
	Rank  string    `json:"rank,omitempty"`
	Value int       `json:"value"`
}

// PlayerView is one seat from the perspective of the requesting player. Hand is only filled
// for the viewer's own seat; everyone else is shown as a count.
type PlayerView struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	HandSize      int        `json:"handSize"`
	Hand          []CardView `json:"hand,omitempty"`
	Score         int        `json:"score"`
	RoundScores   []int      `json:"roundScores"`
	Ready         bool       `json:"ready"`
	IsHost        bool       `json:"isHost"`
	Connected     bool       `json:"connected"`
	IsCurrentTurn bool       `json:"isCurrentTurn"`
	ContractMet   bool       `json:"contractMet"`
}

// MeldView is a meld on the table.
type MeldView struct {
	ID      uuid.UUID       `json:"id"`
	Kind    models.MeldKind `json:"kind"`
	OwnerID uuid.UUID       `json:"ownerId"`
	Round   int             `json:"round"`
	Cards   []CardView      `json:"cards"`
}

// SessionView is the per-viewer state snapshot sent with state events.
type SessionView struct {
	GameCode        string         `json:"gameCode"`
	State           SessionState   `json:"state"`
	Round           int            `json:"round"`
	Rules           HouseRules     `json:"rules"`
	Contract        *RoundContract `json:"contract,omitempty"`
	ViewerID        uuid.UUID      `json:"viewerId"`
	CurrentPlayerID uuid.UUID      `json:"currentPlayerId,omitempty"`
	Phase           TurnPhase      `json:"phase,omitempty"`
	LastAction      LastAction     `json:"lastAction,omitempty"`
	TurnID          int            `json:"turnId"`
	StockSize       int            `json:"stockSize"`
	DiscardSize     int            `json:"discardSize"`
	DiscardTop      *CardView      `json:"discardTop,omitempty"`
	Melds           []MeldView     `json:"melds"`
	Players         []PlayerView   `json:"players"`
	WinnerID        uuid.UUID      `json:"winnerId,omitempty"`
	Standings       []Standing     `json:"standings,omitempty"`
}

func cardView(c *models.Card) CardView {
	return CardView{ID: c.ID, Suit: string(c.Suit), Rank: string(c.Rank), Value: CardValue(c)}
}

func cardViews(cards []*models.Card) []CardView {
	out := make([]CardView, len(cards))
	for i, c := range cards {
		out[i] = cardView(c)
	}
	return out
}

func meldView(m *models.Meld) MeldView {
	return MeldView{ID: m.ID, Kind: m.Kind, OwnerID: m.OwnerID, Round: m.Round, Cards: cardViews(m.Cards)}
}

// View returns the session as seen by viewerID.
func (g *GameSession) View(viewerID uuid.UUID) SessionView {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.viewLocked(viewerID)
}

func (g *GameSession) viewLocked(viewerID uuid.UUID) SessionView {
	v := SessionView{
		GameCode: g.Code,
		State:    g.State,
		Round:    g.Round,
		Rules:    g.HouseRules,
		ViewerID: viewerID,
		TurnID:   g.Turn.TurnID,
		WinnerID: g.WinnerID,
		Melds:    make([]MeldView, 0, len(g.Melds)),
		Players:  make([]PlayerView, 0, len(g.Players)),
	}
	if rc, err := ContractFor(g.Round); err == nil {
		v.Contract = &rc
	}
	if g.State == StatePlaying {
		v.CurrentPlayerID = g.Turn.CurrentPlayer()
		v.Phase = g.Turn.Phase
		v.LastAction = g.Turn.LastAction
	}
	if g.Deck != nil {
		v.StockSize = g.Deck.Len()
	}
	v.DiscardSize = len(g.DiscardPile)
	if n := len(g.DiscardPile); n > 0 {
		top := cardView(g.DiscardPile[n-1])
		v.DiscardTop = &top
	}
	for _, m := range g.Melds {
		v.Melds = append(v.Melds, meldView(m))
	}
	for _, p := range g.Players {
		pv := PlayerView{
			ID:            p.ID,
			Name:          p.Name,
			HandSize:      len(p.Hand),
			Score:         p.Score,
			RoundScores:   append([]int{}, p.RoundScores...),
			Ready:         p.Ready,
			IsHost:        p.IsHost,
			Connected:     p.Connected,
			IsCurrentTurn: v.CurrentPlayerID == p.ID,
			ContractMet:   g.State == StatePlaying && CheckContractSatisfied(p.ID, g.Melds, g.Round),
		}
		if p.ID == viewerID {
			pv.Hand = cardViews(p.Hand)
		}
		v.Players = append(v.Players, pv)
	}
	if g.State == StateBetweenRounds || g.State == StateFinished {
		v.Standings = Standings(g.Players)
	}
	return v
}
