// internal/game/game.go
package game

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zionscheck/internal/cache"
	"github.com/jason-s-yu/zionscheck/internal/models"
	"github.com/sirupsen/logrus"
)

// SessionState is the lifecycle state of a game session.
type SessionState string

const (
	StateWaiting       SessionState = "waiting"
	StatePlaying       SessionState = "playing"
	StateBetweenRounds SessionState = "between_rounds"
	StateFinished      SessionState = "finished"
)

// ActionPublisher ships action records to the historian queue.
type ActionPublisher interface {
	PublishGameAction(ctx context.Context, rec cache.GameActionRecord) error
}

// SessionOptions carries the collaborators of a GameSession. Zero values are replaced with
// production defaults.
type SessionOptions struct {
	Rules     *HouseRules
	IDs       IDGenerator
	Rand      *rand.Rand
	Logger    *logrus.Entry
	Publisher ActionPublisher
	Store     SnapshotStore
}

// GameSession holds the entire state for a single game instance in memory.
type GameSession struct {
	Code       string
	HouseRules HouseRules
	State      SessionState
	CreatedAt  time.Time

	Players     []*models.Player
	Deck        *Deck
	DiscardPile []*models.Card
	Melds       []*models.Meld

	Round int
	Turn  *TurnController
	// LastRoundWinner went out in the most recent round; WinnerID is set once the game is finished.
	LastRoundWinner uuid.UUID
	WinnerID        uuid.UUID

	TurnDuration time.Duration
	turnTimer    *time.Timer

	universe     int // cards in play this round
	actionIndex  int // increments for each logged action
	lastActivity time.Time

	ids       IDGenerator
	rng       *rand.Rand
	logger    *logrus.Entry
	publisher ActionPublisher
	store     SnapshotStore

	Mu sync.Mutex

	// BroadcastFn is used to send events to all players. If nil, no broadcast is done.
	BroadcastFn func(ev GameEvent)

	// BroadcastToPlayerFn sends an event to a single specific player.
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)
}

// NewGameSession builds an empty session waiting for players.
func NewGameSession(code string, opts SessionOptions) *GameSession {
	rules := DefaultHouseRules()
	if opts.Rules != nil {
		rules = *opts.Rules
	}
	if opts.IDs == nil {
		opts.IDs = NewRandomIDs()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	now := time.Now()
	return &GameSession{
		Code:         code,
		HouseRules:   rules,
		State:        StateWaiting,
		CreatedAt:    now,
		Players:      []*models.Player{},
		Turn:         &TurnController{},
		TurnDuration: time.Duration(rules.TurnTimerSec) * time.Second,
		lastActivity: now,
		ids:          opts.IDs,
		rng:          opts.Rand,
		logger:       opts.Logger.WithField("game", code),
		publisher:    opts.Publisher,
		store:        opts.Store,
	}
}

// LastActivity returns when the session last accepted an action.
func (g *GameSession) LastActivity() time.Time {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.lastActivity
}

// Join seats a new player. The first player to join becomes the host.
func (g *GameSession) Join(name string) (*models.Player, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if name == "" {
		return nil, newError(KindInvalidAction, "player name is required")
	}
	if g.State != StateWaiting {
		return nil, newError(KindWrongPhase, "game %s has already started", g.Code)
	}
	if len(g.Players) >= g.HouseRules.MaxPlayers {
		return nil, newError(KindGameFull, "game %s is full", g.Code)
	}

	p := &models.Player{
		ID:          g.ids.NewID(),
		Name:        name,
		Hand:        []*models.Card{},
		RoundScores: []int{},
		IsHost:      len(g.Players) == 0,
	}
	g.Players = append(g.Players, p)
	g.touch()
	g.logger.WithFields(logrus.Fields{"player": p.ID, "name": name}).Info("player joined")
	g.logAction(p.ID, string(EventPlayerJoined), map[string]interface{}{"name": name, "host": p.IsHost})
	g.fireStateEvent(EventPlayerJoined, nil, map[string]interface{}{"playerId": p.ID})

	cp := *p
	return &cp, nil
}

// SetReady toggles a player's ready flag before the game starts. Once every seated player is
// ready and at least two are seated, round 1 begins.
func (g *GameSession) SetReady(playerID uuid.UUID, ready bool) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	p := g.getPlayerByID(playerID)
	if p == nil {
		return g.reject(playerID, newError(KindPlayerNotFound, "player %s is not in game %s", playerID, g.Code))
	}
	if g.State != StateWaiting {
		return g.reject(playerID, newError(KindWrongPhase, "the game has already started"))
	}

	start := g.allReadyWith(p, ready)
	if start {
		if err := CheckDeal(1, len(g.Players)); err != nil {
			return g.reject(playerID, err)
		}
	}

	p.Ready = ready
	g.touch()
	g.logAction(playerID, models.ActionSetReady, map[string]interface{}{"ready": ready})

	if start {
		if err := g.startRoundLocked(1); err != nil {
			return g.reject(playerID, err)
		}
		return nil
	}
	g.fireStateEvent(EventStateUpdated, nil, nil)
	return nil
}

// UpdateRules lets the host change house rules while the game is still waiting for players.
// Keys missing from rules keep their current value; an invalid value rejects the whole update.
func (g *GameSession) UpdateRules(playerID uuid.UUID, rules map[string]interface{}) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	p := g.getPlayerByID(playerID)
	if p == nil {
		return g.reject(playerID, newError(KindPlayerNotFound, "player %s is not in game %s", playerID, g.Code))
	}
	if !p.IsHost {
		return g.reject(playerID, newError(KindNotHost, "only the host can change house rules"))
	}
	if g.State != StateWaiting {
		return g.reject(playerID, newError(KindWrongPhase, "house rules are fixed once the game starts"))
	}
	next, err := ParseRules(rules, g.HouseRules)
	if err != nil {
		return g.reject(playerID, newError(KindInvalidAction, "%v", err))
	}
	if next.MaxPlayers < len(g.Players) {
		return g.reject(playerID, newError(KindInvalidAction, "%d players are already seated", len(g.Players)))
	}

	g.HouseRules = next
	g.TurnDuration = time.Duration(next.TurnTimerSec) * time.Second
	g.touch()
	g.logger.WithField("rules", next).Info("house rules updated")
	g.logAction(playerID, models.ActionUpdateRules, map[string]interface{}{"rules": next})
	g.fireStateEvent(EventRulesUpdated, nil, nil)
	return nil
}

// allReadyWith reports whether every seat would be ready once p's flag is set to ready.
func (g *GameSession) allReadyWith(p *models.Player, ready bool) bool {
	if len(g.Players) < 2 {
		return false
	}
	for _, q := range g.Players {
		r := q.Ready
		if q == p {
			r = ready
		}
		if !r {
			return false
		}
	}
	return true
}

// SetConnected records transport presence. It never fails and never changes game state.
func (g *GameSession) SetConnected(playerID uuid.UUID, connected bool) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	p := g.getPlayerByID(playerID)
	if p == nil || p.Connected == connected {
		return
	}
	p.Connected = connected
	g.logAction(playerID, "player_connected", map[string]interface{}{"connected": connected})
	g.fireStateEvent(EventStateUpdated, nil, nil)
}

// SendState pushes the current view to a single player, e.g. after a reconnect.
func (g *GameSession) SendState(playerID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.getPlayerByID(playerID) == nil {
		return
	}
	view := g.viewLocked(playerID)
	g.fireEventToPlayer(playerID, GameEvent{Type: EventStateUpdated, State: &view})
}

// PlayerByID returns a copy of the player, hand included.
func (g *GameSession) PlayerByID(playerID uuid.UUID) (models.Player, bool) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	p := g.getPlayerByID(playerID)
	if p == nil {
		return models.Player{}, false
	}
	cp := *p
	cp.Hand = append([]*models.Card{}, p.Hand...)
	cp.RoundScores = append([]int{}, p.RoundScores...)
	return cp, true
}

// Standings returns the cumulative leaderboard, lowest score first.
func (g *GameSession) Standings() []Standing {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return Standings(g.Players)
}

// DrawFromDeck moves the top stock card into the current player's hand.
func (g *GameSession) DrawFromDeck(playerID uuid.UUID) (*models.Card, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	c, err := g.drawFromDeckLocked(playerID)
	if err != nil {
		return nil, g.reject(playerID, err)
	}
	return c, nil
}

func (g *GameSession) drawFromDeckLocked(playerID uuid.UUID) (*models.Card, error) {
	p, err := g.checkPlaying(playerID)
	if err != nil {
		return nil, err
	}
	if err := g.Turn.CheckCanDraw(playerID); err != nil {
		return nil, err
	}
	if g.Deck.Len() == 0 {
		if !g.HouseRules.ReshuffleDiscard || len(g.DiscardPile) < 2 {
			return nil, newError(KindDeckExhausted, "the stock is empty")
		}
		g.recycleDiscardLocked()
	}
	card, err := g.Deck.Draw()
	if err != nil {
		return nil, err
	}

	p.Hand = append(p.Hand, card)
	g.Turn.MarkDrew(card.ID)
	g.touch()
	g.logAction(playerID, models.ActionDrawDeck, map[string]interface{}{"cardId": card.ID, "stockSize": g.Deck.Len()})
	g.fireEvent(GameEvent{
		Type:    EventPlayerDrew,
		User:    &EventUser{ID: playerID, Name: p.Name},
		Payload: map[string]interface{}{"source": "deck", "stockSize": g.Deck.Len()},
	})
	g.fireStateEvent(EventStateUpdated, nil, nil)
	return card, nil
}

// recycleDiscardLocked shuffles every discard except the top back into the stock.
func (g *GameSession) recycleDiscardLocked() {
	n := len(g.DiscardPile)
	top := g.DiscardPile[n-1]
	g.Deck.Recycle(g.DiscardPile[:n-1], g.rng)
	g.DiscardPile = []*models.Card{top}
	g.logger.WithField("stockSize", g.Deck.Len()).Info("stock recycled from discard pile")
	g.logAction(uuid.Nil, string(EventDeckRecycled), map[string]interface{}{"stockSize": g.Deck.Len()})
	g.fireEvent(GameEvent{Type: EventDeckRecycled, Payload: map[string]interface{}{"stockSize": g.Deck.Len()}})
}

// DrawFromDiscard moves the top of the discard pile into the current player's hand.
func (g *GameSession) DrawFromDiscard(playerID uuid.UUID) (*models.Card, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	c, err := g.drawFromDiscardLocked(playerID)
	if err != nil {
		return nil, g.reject(playerID, err)
	}
	return c, nil
}

func (g *GameSession) drawFromDiscardLocked(playerID uuid.UUID) (*models.Card, error) {
	p, err := g.checkPlaying(playerID)
	if err != nil {
		return nil, err
	}
	if err := g.Turn.CheckCanDraw(playerID); err != nil {
		return nil, err
	}
	n := len(g.DiscardPile)
	if n == 0 {
		return nil, newError(KindDiscardPileEmpty, "the discard pile is empty")
	}
	card := g.DiscardPile[n-1]
	g.DiscardPile = g.DiscardPile[:n-1]

	p.Hand = append(p.Hand, card)
	g.Turn.MarkDrew(card.ID)
	g.touch()
	g.logAction(playerID, models.ActionDrawDiscard, map[string]interface{}{"cardId": card.ID})
	g.fireEvent(GameEvent{
		Type:    EventPlayerDrew,
		User:    &EventUser{ID: playerID, Name: p.Name},
		Card:    buildEventCard(card),
		Payload: map[string]interface{}{"source": "discard"},
	})
	g.fireStateEvent(EventStateUpdated, nil, nil)
	return card, nil
}

// LayMeld moves cardIDs from the current player's hand onto the table as a new meld.
func (g *GameSession) LayMeld(playerID uuid.UUID, cardIDs []uuid.UUID, kind models.MeldKind) (*models.Meld, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	m, err := g.layMeldLocked(playerID, cardIDs, kind)
	if err != nil {
		return nil, g.reject(playerID, err)
	}
	cp := *m
	cp.Cards = append([]*models.Card{}, m.Cards...)
	return &cp, nil
}

func (g *GameSession) layMeldLocked(playerID uuid.UUID, cardIDs []uuid.UUID, kind models.MeldKind) (*models.Meld, error) {
	p, err := g.checkPlaying(playerID)
	if err != nil {
		return nil, err
	}
	if err := g.Turn.CheckCanMeld(playerID); err != nil {
		return nil, err
	}
	if _, ok := models.ParseMeldKind(string(kind)); !ok {
		return nil, newError(KindMeldIllegal, "unknown meld kind %q", kind)
	}
	cards, err := cardsFromHand(p, cardIDs)
	if err != nil {
		return nil, err
	}
	if err := ValidateMeld(kind, cards); err != nil {
		return nil, err
	}
	counts := meldCounts(playerID, g.Melds, g.Round)
	counts[kind]++
	if err := g.checkHandAfter(len(p.Hand)-len(cards), counts); err != nil {
		return nil, err
	}

	if kind == models.MeldRun {
		cards = ArrangeRun(cards)
	}
	meld := &models.Meld{
		ID:      g.ids.NewID(),
		Kind:    kind,
		Cards:   cards,
		OwnerID: playerID,
		Round:   g.Round,
	}
	p.Hand = removeCards(p.Hand, cardIDs)
	g.Melds = append(g.Melds, meld)
	g.touch()

	g.logAction(playerID, models.ActionLayMeld, map[string]interface{}{"meldId": meld.ID, "kind": kind, "cardIds": cardIDs})
	mv := meldView(meld)
	g.fireEvent(GameEvent{Type: EventPlayerMelded, User: &EventUser{ID: playerID, Name: p.Name}, Meld: &mv})
	g.fireStateEvent(EventStateUpdated, nil, nil)
	return meld, nil
}

// AddToMeld moves one card from the current player's hand onto any meld on the table.
func (g *GameSession) AddToMeld(playerID, meldID, cardID uuid.UUID) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if err := g.addToMeldLocked(playerID, meldID, cardID); err != nil {
		return g.reject(playerID, err)
	}
	return nil
}

func (g *GameSession) addToMeldLocked(playerID, meldID, cardID uuid.UUID) error {
	p, err := g.checkPlaying(playerID)
	if err != nil {
		return err
	}
	if err := g.Turn.CheckCanMeld(playerID); err != nil {
		return err
	}
	meld := g.getMeldByID(meldID)
	if meld == nil {
		return newError(KindMeldNotFound, "meld %s is not on the table", meldID)
	}
	idx := p.CardIndex(cardID)
	if idx < 0 {
		return newError(KindCardNotInHand, "card %s is not in your hand", cardID)
	}
	card := p.Hand[idx]

	extended := make([]*models.Card, 0, len(meld.Cards)+1)
	extended = append(extended, meld.Cards...)
	extended = append(extended, card)
	if err := ValidateMeld(meld.Kind, extended); err != nil {
		return err
	}
	if err := g.checkHandAfter(len(p.Hand)-1, meldCounts(playerID, g.Melds, g.Round)); err != nil {
		return err
	}

	if meld.Kind == models.MeldRun {
		extended = ArrangeRun(extended)
	}
	meld.Cards = extended
	p.Hand = append(p.Hand[:idx:idx], p.Hand[idx+1:]...)
	g.touch()

	g.logAction(playerID, models.ActionAddToMeld, map[string]interface{}{"meldId": meldID, "cardId": cardID})
	mv := meldView(meld)
	g.fireEvent(GameEvent{
		Type: EventPlayerExtendedMeld,
		User: &EventUser{ID: playerID, Name: p.Name},
		Card: buildEventCard(card),
		Meld: &mv,
	})
	g.fireStateEvent(EventStateUpdated, nil, nil)
	return nil
}

// Discard puts a card from the current player's hand on the discard pile and ends the turn.
func (g *GameSession) Discard(playerID, cardID uuid.UUID) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if err := g.discardLocked(playerID, cardID); err != nil {
		return g.reject(playerID, err)
	}
	return nil
}

func (g *GameSession) discardLocked(playerID, cardID uuid.UUID) error {
	p, err := g.checkPlaying(playerID)
	if err != nil {
		return err
	}
	if err := g.Turn.CheckCanDiscard(playerID); err != nil {
		return err
	}
	idx := p.CardIndex(cardID)
	if idx < 0 {
		return newError(KindCardNotInHand, "card %s is not in your hand", cardID)
	}
	if len(p.Hand) == 1 && !CheckContractSatisfied(playerID, g.Melds, g.Round) {
		return newError(KindContractNotSatisfied, "complete the round %d contract before going out", g.Round)
	}

	card := p.Hand[idx]
	p.Hand = append(p.Hand[:idx:idx], p.Hand[idx+1:]...)
	g.DiscardPile = append(g.DiscardPile, card)
	g.touch()

	g.logAction(playerID, models.ActionDiscard, map[string]interface{}{"cardId": cardID})
	g.fireEvent(GameEvent{
		Type: EventPlayerDiscarded,
		User: &EventUser{ID: playerID, Name: p.Name},
		Card: buildEventCard(card),
	})

	if len(p.Hand) == 0 {
		g.Turn.MarkDiscarded()
		g.endRoundLocked(playerID)
		return nil
	}
	g.Turn.Advance()
	g.scheduleNextTurnTimer()
	g.fireStateEvent(EventStateUpdated, nil, nil)
	return nil
}

// ReorderHand replaces the order of a player's hand with order, which must be a permutation
// of the hand. Order has no rule meaning.
func (g *GameSession) ReorderHand(playerID uuid.UUID, order []uuid.UUID) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	p := g.getPlayerByID(playerID)
	if p == nil {
		return g.reject(playerID, newError(KindPlayerNotFound, "player %s is not in game %s", playerID, g.Code))
	}
	if len(order) != len(p.Hand) {
		return g.reject(playerID, newError(KindInvalidAction, "order has %d cards, hand has %d", len(order), len(p.Hand)))
	}
	if len(order) > 0 {
		reordered, err := cardsFromHand(p, order)
		if err != nil {
			return g.reject(playerID, newError(KindInvalidAction, "order is not a permutation of your hand"))
		}
		p.Hand = reordered
	}
	g.touch()
	g.logAction(playerID, models.ActionReorderHand, map[string]interface{}{"order": order})
	view := g.viewLocked(playerID)
	g.fireEventToPlayer(playerID, GameEvent{Type: EventStateUpdated, State: &view})
	return nil
}

// HandlePlayerAction routes a transport-level action to the matching operation.
func (g *GameSession) HandlePlayerAction(playerID uuid.UUID, action models.GameAction) error {
	var err error
	switch action.ActionType {
	case models.ActionSetReady:
		ready := true
		if action.Ready != nil {
			ready = *action.Ready
		}
		err = g.SetReady(playerID, ready)
	case models.ActionDrawDeck:
		_, err = g.DrawFromDeck(playerID)
	case models.ActionDrawDiscard:
		_, err = g.DrawFromDiscard(playerID)
	case models.ActionLayMeld:
		_, err = g.LayMeld(playerID, action.CardIDs, action.Kind)
	case models.ActionAddToMeld:
		err = g.AddToMeld(playerID, action.MeldID, action.CardID)
	case models.ActionDiscard:
		err = g.Discard(playerID, action.CardID)
	case models.ActionStartNextRound:
		err = g.StartNextRound(playerID)
	case models.ActionReorderHand:
		err = g.ReorderHand(playerID, action.Order)
	case models.ActionUpdateRules:
		err = g.UpdateRules(playerID, action.Rules)
	default:
		g.Mu.Lock()
		err = g.reject(playerID, newError(KindInvalidAction, "unknown action type %q", action.ActionType))
		g.Mu.Unlock()
	}
	return err
}

// checkPlaying resolves the acting player and requires a round in progress.
func (g *GameSession) checkPlaying(playerID uuid.UUID) (*models.Player, error) {
	p := g.getPlayerByID(playerID)
	if p == nil {
		return nil, newError(KindPlayerNotFound, "player %s is not in game %s", playerID, g.Code)
	}
	if g.State != StatePlaying {
		return nil, newError(KindWrongPhase, "no round is in progress")
	}
	return p, nil
}

// checkHandAfter rejects a meld action that would empty the hand or strand the player. A round
// only ends on a discard, so at least one card must stay; until the contract is met a player who
// still owes a discard must keep two.
func (g *GameSession) checkHandAfter(remaining int, counts map[models.MeldKind]int) error {
	rc, err := ContractFor(g.Round)
	if err != nil {
		return err
	}
	met := rc.SatisfiedBy(counts)
	need := 1
	if !met && g.Turn.Phase == PhaseAwaitingDiscard {
		need = 2
	}
	if remaining >= need {
		return nil
	}
	if !met {
		return newError(KindContractNotSatisfied, "complete the round %d contract (%s) before going out", rc.Round, rc.Description)
	}
	return newError(KindInvalidAction, "keep a card in hand: you go out by discarding")
}

// cardsFromHand resolves ids against the hand. Ids must be distinct and all present.
func cardsFromHand(p *models.Player, ids []uuid.UUID) ([]*models.Card, error) {
	if len(ids) == 0 {
		return nil, newError(KindInvalidAction, "no cards given")
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]*models.Card, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, newError(KindInvalidAction, "card %s listed twice", id)
		}
		seen[id] = true
		idx := p.CardIndex(id)
		if idx < 0 {
			return nil, newError(KindCardNotInHand, "card %s is not in your hand", id)
		}
		out = append(out, p.Hand[idx])
	}
	return out, nil
}

func removeCards(hand []*models.Card, ids []uuid.UUID) []*models.Card {
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	out := make([]*models.Card, 0, len(hand))
	for _, c := range hand {
		if !drop[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

func (g *GameSession) getPlayerByID(playerID uuid.UUID) *models.Player {
	for _, p := range g.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (g *GameSession) getMeldByID(meldID uuid.UUID) *models.Meld {
	for _, m := range g.Melds {
		if m.ID == meldID {
			return m
		}
	}
	return nil
}

func (g *GameSession) touch() {
	g.lastActivity = time.Now()
}

// logAction sends the action details to the historian service via Redis.
// Assumes lock is held.
func (g *GameSession) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	g.actionIndex++
	if g.publisher == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["round"] = g.Round
	record := cache.GameActionRecord{
		GameCode:      g.Code,
		ActionIndex:   g.actionIndex,
		ActorID:       actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := g.publisher.PublishGameAction(ctx, rec); err != nil {
			g.logger.WithError(err).Warnf("failed to publish action %d", rec.ActionIndex)
		}
	}(record)
}
