package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGameTransitions(t *testing.T) {
	assert.True(t, CanTransitionTo(GameStateOpen, GameStateSettled))
	assert.False(t, CanTransitionTo(GameStateSettled, GameStateOpen))
	assert.False(t, CanTransitionTo(GameStateSettled, GameStateSettled))
	assert.False(t, CanTransitionTo(GameStateOpen, GameStateOpen))

	g := &GameRecord{}
	assert.Equal(t, GameStateOpen, g.State())
	g.Settled = true
	assert.Equal(t, GameStateSettled, g.State())
}

func TestAmountArithmetic(t *testing.T) {
	sum, ok := AddAmount(1000, 50)
	assert.True(t, ok)
	assert.Equal(t, uint64(1050), sum)

	_, ok = AddAmount(MaxAmount, 1)
	assert.False(t, ok)

	sum, ok = AddAmount(MaxAmount-1, 1)
	assert.True(t, ok)
	assert.Equal(t, MaxAmount, sum)

	_, ok = AddAmount(MaxAmount+1, 0)
	assert.False(t, ok)

	diff, ok := SubAmount(1050, 50)
	assert.True(t, ok)
	assert.Equal(t, uint64(1000), diff)

	_, ok = SubAmount(10, 11)
	assert.False(t, ok)

	assert.False(t, ValidAmount(0))
	assert.True(t, ValidAmount(1))
	assert.True(t, ValidAmount(MaxAmount))
	assert.False(t, ValidAmount(MaxAmount+1))
}
