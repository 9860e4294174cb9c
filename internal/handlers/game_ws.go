// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/zionscheck/internal/auth"
	"github.com/jason-s-yu/zionscheck/internal/game"
	"github.com/jason-s-yu/zionscheck/internal/middleware"
	"github.com/jason-s-yu/zionscheck/internal/models"
	"github.com/sirupsen/logrus"
)

// GameMessage is an inbound WebSocket frame.
type GameMessage struct {
	Type    string                 `json:"type"`
	CardID  uuid.UUID              `json:"cardId,omitempty"`
	CardIDs []uuid.UUID            `json:"cardIds,omitempty"`
	MeldID  uuid.UUID              `json:"meldId,omitempty"`
	Kind    models.MeldKind        `json:"kind,omitempty"`
	Order   []uuid.UUID            `json:"order,omitempty"`
	Ready   *bool                  `json:"ready,omitempty"`
	Rules   map[string]interface{} `json:"rules,omitempty"`
}

func (m GameMessage) action() models.GameAction {
	return models.GameAction{
		ActionType: m.Type,
		CardID:     m.CardID,
		CardIDs:    m.CardIDs,
		MeldID:     m.MeldID,
		Kind:       m.Kind,
		Order:      m.Order,
		Ready:      m.Ready,
		Rules:      m.Rules,
	}
}

// GameWSHandler upgrades /game/ws/{code} for a seated player. The player is identified by the
// token issued at create or join time, which must name the same game.
func GameWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := game.NormalizeCode(r.PathValue("code"))
		if code == "" {
			http.Error(w, "Missing game code in path (/game/ws/{code})", http.StatusBadRequest)
			return
		}

		tokenCode, playerID, err := auth.AuthenticatePlayerToken(tokenFromRequest(r))
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if game.NormalizeCode(tokenCode) != code {
			http.Error(w, "token is for a different game", http.StatusForbidden)
			return
		}

		g, err := gs.Registry.Load(r.Context(), code)
		if err != nil {
			writeGameError(w, err)
			return
		}
		if _, ok := g.PlayerByID(playerID); !ok {
			http.Error(w, "You are not a player in this game", http.StatusForbidden)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.WithError(err).WithField("game", code).Warn("websocket accept")
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "game" {
			c.Close(websocket.StatusCode(BadSubprotocolError), "Client must use the 'game' subprotocol.")
			return
		}

		log := logger.WithFields(logrus.Fields{"game": code, "player": playerID})
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		cl := gs.Hub.register(code, playerID)
		pumpDone := make(chan struct{})
		go func() {
			defer close(pumpDone)
			writePump(ctx, c, cl, log)
		}()

		g.SetConnected(playerID, true)
		g.SendState(playerID)

		err = readGameMessages(ctx, c, g, cl, log)

		cancel()
		<-pumpDone
		if gs.Hub.unregister(code, cl) {
			g.SetConnected(playerID, false)
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readGameMessages feeds a client's frames to the session until the connection ends. Rejections
// reach the client as action_rejected events, so errors from actions only get logged here.
func readGameMessages(ctx context.Context, c *websocket.Conn, g *game.GameSession, cl *client, log *logrus.Entry) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			log.WithField("type", msgType).Warn("ignoring non-text message")
			continue
		}

		var msg GameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.WithError(err).Debug("invalid JSON from client")
			sendFrame(cl, map[string]interface{}{"type": "error", "message": "Invalid JSON format."})
			continue
		}

		switch msg.Type {
		case "ping":
			sendFrame(cl, map[string]string{"type": "pong"})
		case "get_state":
			g.SendState(cl.playerID)
		default:
			if err := g.HandlePlayerAction(cl.playerID, msg.action()); err != nil {
				log.WithError(err).WithField("action", msg.Type).Debug("action rejected")
			}
		}
	}
}

func sendFrame(cl *client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	cl.trySend(data)
}
