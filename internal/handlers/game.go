// internal/handlers/game.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zionscheck/internal/auth"
	"github.com/jason-s-yu/zionscheck/internal/game"
	"github.com/jason-s-yu/zionscheck/internal/models"
)

type createGameRequest struct {
	PlayerName string `json:"playerName"`
}

type joinGameRequest struct {
	GameCode   string `json:"gameCode"`
	PlayerName string `json:"playerName"`
}

// seatResponse is returned by create and join. Token authenticates the WebSocket.
type seatResponse struct {
	GameCode string    `json:"gameCode"`
	PlayerID uuid.UUID `json:"playerId"`
	IsHost   bool      `json:"isHost"`
	Token    string    `json:"token"`
}

// CreateGameHandler opens a new game with the caller as host.
func CreateGameHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad create request payload", http.StatusBadRequest)
			return
		}
		g, host, err := gs.Registry.CreateGame(req.PlayerName)
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeSeat(w, gs, g.Code, host)
	}
}

// JoinGameHandler seats the caller in an existing game that has not started.
func JoinGameHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req joinGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad join request payload", http.StatusBadRequest)
			return
		}
		if _, err := gs.Registry.Load(r.Context(), req.GameCode); err != nil {
			writeGameError(w, err)
			return
		}
		g, p, err := gs.Registry.JoinGame(req.GameCode, req.PlayerName)
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeSeat(w, gs, g.Code, p)
	}
}

func writeSeat(w http.ResponseWriter, gs *GameServer, code string, p *models.Player) {
	token, err := auth.CreatePlayerToken(code, p.ID)
	if err != nil {
		gs.Logger.WithError(err).Error("create player token")
		http.Error(w, "could not issue token", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "auth_token", Value: token, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	writeJSON(w, http.StatusOK, seatResponse{GameCode: code, PlayerID: p.ID, IsHost: p.IsHost, Token: token})
}

// ContractsHandler lists the seven round contracts.
func ContractsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, game.Contracts())
	}
}

// StandingsHandler returns the cumulative leaderboard of a game.
func StandingsHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := gs.Registry.Load(r.Context(), r.PathValue("code"))
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g.Standings())
	}
}
