// internal/game/rules_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRules(t *testing.T) {
	current := DefaultHouseRules()
	updated, err := ParseRules(map[string]interface{}{
		"maxPlayers":       float64(4),
		"turnTimerSec":     30,
		"reshuffleDiscard": false,
	}, current)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.MaxPlayers)
	assert.Equal(t, 30, updated.TurnTimerSec)
	assert.False(t, updated.ReshuffleDiscard)
	assert.True(t, updated.StartWithUpcard, "Unset rules keep their old value")
	assert.True(t, current.ReshuffleDiscard, "ParseRules works on a copy")
}

func TestParseRulesRejectsBadInput(t *testing.T) {
	_, err := ParseRules(map[string]interface{}{"maxPlayers": float64(9)}, DefaultHouseRules())
	assert.Error(t, err)
	_, err = ParseRules(map[string]interface{}{"maxPlayers": float64(1)}, DefaultHouseRules())
	assert.Error(t, err)
	_, err = ParseRules(map[string]interface{}{"turnTimerSec": "soon"}, DefaultHouseRules())
	assert.Error(t, err)
	_, err = ParseRules(map[string]interface{}{"startWithUpcard": "yes"}, DefaultHouseRules())
	assert.Error(t, err)
}

func TestUpdateIsAllOrNothing(t *testing.T) {
	rules := DefaultHouseRules()
	err := rules.Update(map[string]interface{}{
		"maxPlayers":      float64(3),
		"turnTimerSec":    float64(20),
		"startWithUpcard": "no",
	})
	require.Error(t, err)
	assert.Equal(t, DefaultHouseRules(), rules, "A rejected update leaves every field untouched")

	require.NoError(t, rules.Update(map[string]interface{}{"maxPlayers": float64(3), "turnTimerSec": nil}))
	assert.Equal(t, 3, rules.MaxPlayers)
	assert.Equal(t, 0, rules.TurnTimerSec)
}
