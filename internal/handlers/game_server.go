// internal/handlers/game_server.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/zionscheck/internal/game"
	"github.com/jason-s-yu/zionscheck/internal/middleware"
	"github.com/sirupsen/logrus"
)

// GameServer ties the session registry to the HTTP and WebSocket surface.
type GameServer struct {
	Registry *game.SessionRegistry
	Hub      *Hub
	Logger   *logrus.Logger
}

func NewGameServer(registry *game.SessionRegistry, hub *Hub, logger *logrus.Logger) *GameServer {
	return &GameServer{Registry: registry, Hub: hub, Logger: logger}
}

// Routes returns the game endpoints, each wrapped in request logging.
func (gs *GameServer) Routes() http.Handler {
	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(gs.Logger)

	mux.Handle("POST /game/create", logged(CreateGameHandler(gs)))
	mux.Handle("POST /game/join", logged(JoinGameHandler(gs)))
	mux.Handle("GET /game/contracts", logged(ContractsHandler()))
	mux.Handle("GET /game/{code}/standings", logged(StandingsHandler(gs)))
	mux.Handle("GET /game/ws/{code}", logged(GameWSHandler(gs.Logger, gs)))
	return mux
}
