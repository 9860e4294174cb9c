// internal/models/meld.go
package models

import "github.com/google/uuid"

// MeldKind is either a set (same rank) or a run (same suit, consecutive ranks).
type MeldKind string

const (
	MeldSet MeldKind = "set"
	MeldRun MeldKind = "run"
)

// ParseMeldKind converts client input into a MeldKind.
func ParseMeldKind(s string) (MeldKind, bool) {
	switch MeldKind(s) {
	case MeldSet:
		return MeldSet, true
	case MeldRun:
		return MeldRun, true
	}
	return "", false
}

// Meld is a group of cards laid on the table by one player during a round.
type Meld struct {
	ID      uuid.UUID `json:"id"`
	Kind    MeldKind  `json:"kind"`
	Cards   []*Card   `json:"cards"`
	OwnerID uuid.UUID `json:"ownerId"`
	Round   int       `json:"round"`
}
