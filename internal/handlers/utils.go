// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jason-s-yu/zionscheck/internal/game"
)

// tokenFromRequest returns the player token from the auth_token cookie, or the token query
// parameter for clients that cannot set cookies on a WebSocket upgrade.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie("auth_token"); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

// statusForError maps a game error onto an HTTP status.
func statusForError(err error) int {
	var gerr *game.GameError
	if !errors.As(err, &gerr) {
		return http.StatusInternalServerError
	}
	switch gerr.Kind {
	case game.KindGameNotFound, game.KindPlayerNotFound:
		return http.StatusNotFound
	case game.KindGameFull, game.KindWrongPhase:
		return http.StatusConflict
	case game.KindNotHost, game.KindNotYourTurn:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeGameError writes err as a JSON error body with the mapped status.
func writeGameError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	var gerr *game.GameError
	if errors.As(err, &gerr) {
		body.Kind = string(gerr.Kind)
		body.Message = gerr.Message
	}
	writeJSON(w, statusForError(err), body)
}
