package models

import "github.com/google/uuid"

// Action types accepted by GameSession.HandlePlayerAction.
const (
	ActionSetReady       = "set_ready"
	ActionDrawDeck       = "draw_deck"
	ActionDrawDiscard    = "draw_discard"
	ActionLayMeld        = "lay_meld"
	ActionAddToMeld      = "add_to_meld"
	ActionDiscard        = "discard"
	ActionStartNextRound = "start_next_round"
	ActionReorderHand    = "reorder_hand"
	ActionUpdateRules    = "update_rules"
)

// GameAction captures a player's in-game move
type GameAction struct {
	ActionType string      `json:"action_type"`
	CardID     uuid.UUID   `json:"card_id,omitempty"`
	CardIDs    []uuid.UUID `json:"card_ids,omitempty"`
	MeldID     uuid.UUID   `json:"meld_id,omitempty"`
	Kind       MeldKind    `json:"kind,omitempty"`
	Order      []uuid.UUID `json:"order,omitempty"`
	// Ready is only read by set_ready; nil means "ready".
	Ready *bool `json:"ready,omitempty"`
	// Rules is only read by update_rules.
	Rules map[string]interface{} `json:"rules,omitempty"`
}
