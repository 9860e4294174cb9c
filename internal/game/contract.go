// internal/game/contract.go
package game

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/zionscheck/internal/models"
)

// FinalRound is the last round of a game.
const FinalRound = 7

// ContractRequirement is a minimum number of melds of one kind.
type ContractRequirement struct {
	Kind  models.MeldKind `json:"kind"`
	Count int             `json:"count"`
}

// RoundContract is what a player must lay down before going out in a round.
type RoundContract struct {
	Round       int                   `json:"round"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Required    []ContractRequirement `json:"required"`
	HandSize    int                   `json:"handSize"`
}

func contract(round int, name string, sets, runs int) RoundContract {
	var req []ContractRequirement
	var parts []string
	if sets > 0 {
		req = append(req, ContractRequirement{Kind: models.MeldSet, Count: sets})
		parts = append(parts, plural(sets, "set"))
	}
	if runs > 0 {
		req = append(req, ContractRequirement{Kind: models.MeldRun, Count: runs})
		parts = append(parts, plural(runs, "run"))
	}
	return RoundContract{
		Round:       round,
		Name:        name,
		Description: strings.Join(parts, " and "),
		Required:    req,
		HandSize:    round + 5,
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

var contracts = []RoundContract{
	contract(1, "Two Sets", 2, 0),
	contract(2, "Set and Run", 1, 1),
	contract(3, "Two Runs", 0, 2),
	contract(4, "Three Sets", 3, 0),
	contract(5, "Two Sets and a Run", 2, 1),
	contract(6, "Set and Two Runs", 1, 2),
	contract(7, "Three Runs", 0, 3),
}

// Contracts returns the full seven-round table.
func Contracts() []RoundContract {
	out := make([]RoundContract, len(contracts))
	copy(out, contracts)
	return out
}

// ContractFor returns the contract for round 1..FinalRound.
func ContractFor(round int) (RoundContract, error) {
	if round < 1 || round > FinalRound {
		return RoundContract{}, newError(KindInvalidAction, "no contract for round %d", round)
	}
	return contracts[round-1], nil
}

// SatisfiedBy reports whether per-kind meld counts meet every requirement.
func (rc RoundContract) SatisfiedBy(counts map[models.MeldKind]int) bool {
	for _, r := range rc.Required {
		if counts[r.Kind] < r.Count {
			return false
		}
	}
	return true
}

// CheckContractSatisfied counts the melds playerID laid in round and compares them to the
// round's contract.
func CheckContractSatisfied(playerID uuid.UUID, melds []*models.Meld, round int) bool {
	rc, err := ContractFor(round)
	if err != nil {
		return false
	}
	return rc.SatisfiedBy(meldCounts(playerID, melds, round))
}

func meldCounts(playerID uuid.UUID, melds []*models.Meld, round int) map[models.MeldKind]int {
	counts := make(map[models.MeldKind]int)
	for _, m := range melds {
		if m.OwnerID == playerID && m.Round == round {
			counts[m.Kind]++
		}
	}
	return counts
}
