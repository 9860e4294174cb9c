// internal/game/rules.go
package game

import "fmt"

// HouseRules are the per-session options a host can change before the game starts.
type HouseRules struct {
	MaxPlayers       int  `json:"maxPlayers"`       // seats in the session, 2..6
	TurnTimerSec     int  `json:"turnTimerSec"`     // seconds before a forced move; 0 disables the timer
	ReshuffleDiscard bool `json:"reshuffleDiscard"` // recycle the discard pile (minus its top) when the stock runs out
	StartWithUpcard  bool `json:"startWithUpcard"`  // flip one card onto the discard pile after the deal
}

// MaxSeats is the hard upper bound on MaxPlayers.
const MaxSeats = 6

// DefaultHouseRules returns the rules a new session starts with.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		MaxPlayers:       MaxSeats,
		TurnTimerSec:     0,
		ReshuffleDiscard: true,
		StartWithUpcard:  true,
	}
}

// Update will update the house rules with the new rules provided.
// If a rule is not set or defined, it will be ignored, and the old value will persist.
// On error nothing is changed.
func (rules *HouseRules) Update(newRules map[string]interface{}) error {
	next := *rules
	assignBool := func(field *bool, key string) error {
		if val, exists := newRules[key]; exists && val != nil {
			b, ok := val.(bool)
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
			*field = b
		}
		return nil
	}

	assignInt := func(field *int, key string, minVal, maxVal int) error {
		val, exists := newRules[key]
		if !exists || val == nil {
			return nil
		}
		var n int
		// JSON numbers decode as float64
		switch v := val.(type) {
		case float64:
			n = int(v)
		case int:
			n = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if n < minVal || n > maxVal {
			return fmt.Errorf("%s must be between %d and %d", key, minVal, maxVal)
		}
		*field = n
		return nil
	}

	if err := assignInt(&next.MaxPlayers, "maxPlayers", 2, MaxSeats); err != nil {
		return err
	}
	if err := assignInt(&next.TurnTimerSec, "turnTimerSec", 0, 3600); err != nil {
		return err
	}
	if err := assignBool(&next.ReshuffleDiscard, "reshuffleDiscard"); err != nil {
		return err
	}
	if err := assignBool(&next.StartWithUpcard, "startWithUpcard"); err != nil {
		return err
	}
	*rules = next
	return nil
}

// ParseRules converts a map of rules to a HouseRules struct. It will ensure the types are valid.
func ParseRules(rules map[string]interface{}, current HouseRules) (HouseRules, error) {
	houseRules := current
	err := houseRules.Update(rules)
	return houseRules, err
}
