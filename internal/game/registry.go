// internal/game/registry.go
package game

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zionscheck/internal/models"
	"github.com/sirupsen/logrus"
)

// Broadcaster delivers session events to connected clients. Implementations must not block
// and must not call back into the session.
type Broadcaster interface {
	Broadcast(code string, ev GameEvent)
	SendToPlayer(code string, playerID uuid.UUID, ev GameEvent)
}

// RegistryOptions configures a SessionRegistry. Seed 0 seeds from the clock.
type RegistryOptions struct {
	Rules       HouseRules
	Seed        int64
	IDs         IDGenerator
	Logger      *logrus.Logger
	Publisher   ActionPublisher
	Store       SnapshotStore
	Actions     ActionIndexer
	Broadcaster Broadcaster
}

// SessionRegistry maps game codes to live sessions.
type SessionRegistry struct {
	mu    sync.Mutex
	games map[string]*GameSession
	rng   *rand.Rand // guarded by mu
	opts  RegistryOptions
	log   *logrus.Entry
}

func NewSessionRegistry(opts RegistryOptions) *SessionRegistry {
	if opts.Rules.MaxPlayers == 0 {
		opts.Rules = DefaultHouseRules()
	}
	if opts.IDs == nil {
		opts.IDs = NewRandomIDs()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SessionRegistry{
		games: make(map[string]*GameSession),
		rng:   rand.New(rand.NewSource(seed)),
		opts:  opts,
		log:   opts.Logger.WithField("component", "registry"),
	}
}

// sessionOptions derives per-session collaborators. Each session gets its own rand source.
// Assumes r.mu is held.
func (r *SessionRegistry) sessionOptions() SessionOptions {
	rules := r.opts.Rules
	return SessionOptions{
		Rules:     &rules,
		IDs:       r.opts.IDs,
		Rand:      rand.New(rand.NewSource(r.rng.Int63())),
		Logger:    logrus.NewEntry(r.opts.Logger),
		Publisher: r.opts.Publisher,
		Store:     r.opts.Store,
	}
}

func (r *SessionRegistry) attach(g *GameSession) {
	b := r.opts.Broadcaster
	if b == nil {
		return
	}
	code := g.Code
	g.BroadcastFn = func(ev GameEvent) { b.Broadcast(code, ev) }
	g.BroadcastToPlayerFn = func(playerID uuid.UUID, ev GameEvent) { b.SendToPlayer(code, playerID, ev) }
}

// CreateGame opens a new session under a fresh code and seats hostName as its host.
func (r *SessionRegistry) CreateGame(hostName string) (*GameSession, *models.Player, error) {
	if hostName == "" {
		return nil, nil, newError(KindInvalidAction, "player name is required")
	}
	r.mu.Lock()
	code := newGameCode(r.rng)
	for r.games[code] != nil {
		code = newGameCode(r.rng)
	}
	g := NewGameSession(code, r.sessionOptions())
	r.attach(g)
	r.games[code] = g
	r.mu.Unlock()

	host, err := g.Join(hostName)
	if err != nil {
		r.Evict(code)
		return nil, nil, err
	}

	g.Mu.Lock()
	g.fireEventToPlayer(host.ID, GameEvent{Type: EventGameCreated, Payload: map[string]interface{}{"gameCode": code}})
	g.logAction(host.ID, string(EventGameCreated), nil)
	g.Mu.Unlock()

	r.log.WithFields(logrus.Fields{"game": code, "host": host.ID}).Info("game created")
	return g, host, nil
}

// JoinGame seats playerName in the session with the given code.
func (r *SessionRegistry) JoinGame(code, playerName string) (*GameSession, *models.Player, error) {
	g, err := r.Get(code)
	if err != nil {
		return nil, nil, err
	}
	p, err := g.Join(playerName)
	if err != nil {
		return nil, nil, err
	}
	return g, p, nil
}

// Get returns the live session for code or ErrGameNotFound.
func (r *SessionRegistry) Get(code string) (*GameSession, error) {
	code = NormalizeCode(code)
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[code]
	if !ok {
		return nil, newError(KindGameNotFound, "no game with code %q", code)
	}
	return g, nil
}

// Load returns the live session for code, restoring it from the snapshot store if it is not
// in memory.
func (r *SessionRegistry) Load(ctx context.Context, code string) (*GameSession, error) {
	g, err := r.Get(code)
	if err == nil || r.opts.Store == nil {
		return g, err
	}
	code = NormalizeCode(code)
	snap, err := r.opts.Store.LoadSnapshot(ctx, code)
	if err != nil {
		return nil, err
	}
	if r.opts.Actions != nil {
		logged, err := r.opts.Actions.MaxActionIndex(ctx, code)
		if err != nil {
			return nil, err
		}
		if logged > snap.ActionIndex {
			r.log.WithFields(logrus.Fields{"game": code, "snapshot": snap.ActionIndex, "logged": logged}).Info("action log is ahead of snapshot")
			snap.ActionIndex = logged
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.games[code]; ok {
		return existing, nil
	}
	g, err = RestoreSession(*snap, r.sessionOptions())
	if err != nil {
		r.log.WithError(err).WithField("game", code).Error("snapshot failed invariant checks")
		return nil, err
	}
	r.attach(g)
	r.games[code] = g
	r.log.WithField("game", code).Info("game restored from snapshot")
	return g, nil
}

// Evict drops a session and stops its timer. It reports whether the code was present.
func (r *SessionRegistry) Evict(code string) bool {
	code = NormalizeCode(code)
	r.mu.Lock()
	g, ok := r.games[code]
	delete(r.games, code)
	r.mu.Unlock()
	if ok {
		g.Close()
	}
	return ok
}

// EvictIdle drops every session whose last accepted action is older than maxIdle.
func (r *SessionRegistry) EvictIdle(maxIdle time.Duration) []string {
	cutoff := time.Now().Add(-maxIdle)
	r.mu.Lock()
	var idle []*GameSession
	for code, g := range r.games {
		if g.LastActivity().Before(cutoff) {
			idle = append(idle, g)
			delete(r.games, code)
		}
	}
	r.mu.Unlock()

	codes := make([]string, 0, len(idle))
	for _, g := range idle {
		g.Close()
		codes = append(codes, g.Code)
		r.log.WithField("game", g.Code).Info("evicted idle game")
	}
	return codes
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (r *SessionRegistry) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle(maxIdle)
		}
	}
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.games)
}

// Shutdown saves a final snapshot of every session that has a store and stops all timers.
func (r *SessionRegistry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	games := make([]*GameSession, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	r.mu.Unlock()

	var errs []error
	for _, g := range games {
		g.Close()
		if r.opts.Store == nil {
			continue
		}
		if err := r.opts.Store.SaveSnapshot(ctx, g.Snapshot()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
