package engine

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const tictactoeScript = "../../../content/scripts/tictactoe.lua"

type tttState struct {
	Board []string `json:"board"`
	Turn  string   `json:"turn"`
	Over  bool     `json:"over"`
}

func newTTTEngine(t *testing.T) *LuaEngine {
	t.Helper()
	eng, err := NewLuaEngine(tictactoeScript, 0, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	return eng
}

func tttMove(side string, cell int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"side":%q,"cell":%d}`, side, cell))
}

func TestTicTacToe_InitialState(t *testing.T) {
	eng := newTTTEngine(t)

	raw, err := eng.InitialState()
	require.NoError(t, err)

	var state tttState
	require.NoError(t, json.Unmarshal(raw, &state))
	assert.Equal(t, "first", state.Turn)
	assert.False(t, state.Over)
	require.Len(t, state.Board, 9)
	for _, cell := range state.Board {
		assert.Empty(t, cell)
	}
}

func TestTicTacToe_FirstMove(t *testing.T) {
	eng := newTTTEngine(t)
	raw, err := eng.InitialState()
	require.NoError(t, err)

	result, err := eng.Apply(raw, tttMove("first", 5))
	require.NoError(t, err)

	var state tttState
	require.NoError(t, json.Unmarshal(result.State, &state))
	assert.Equal(t, "X", state.Board[4])
	assert.Equal(t, "second", state.Turn)
	assert.Empty(t, result.Outcome)

	var detail struct {
		Side string `json:"side"`
		Cell int    `json:"cell"`
		Mark string `json:"mark"`
	}
	require.NoError(t, json.Unmarshal(result.Detail, &detail))
	assert.Equal(t, "first", detail.Side)
	assert.Equal(t, 5, detail.Cell)
	assert.Equal(t, "X", detail.Mark)
}

func TestTicTacToe_RejectsOutOfTurn(t *testing.T) {
	eng := newTTTEngine(t)
	raw, err := eng.InitialState()
	require.NoError(t, err)

	_, err = eng.Apply(raw, tttMove("second", 1))
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestTicTacToe_RejectsOccupiedCell(t *testing.T) {
	eng := newTTTEngine(t)
	raw, err := eng.InitialState()
	require.NoError(t, err)

	result, err := eng.Apply(raw, tttMove("first", 1))
	require.NoError(t, err)

	_, err = eng.Apply(result.State, tttMove("second", 1))
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestTicTacToe_RejectsBadCell(t *testing.T) {
	eng := newTTTEngine(t)
	raw, err := eng.InitialState()
	require.NoError(t, err)

	for _, cell := range []int{0, 10, -1} {
		_, err = eng.Apply(raw, tttMove("first", cell))
		assert.ErrorIs(t, err, ErrInvalidAction, "cell %d", cell)
	}
}

func TestTicTacToe_WinAndGameOver(t *testing.T) {
	eng := newTTTEngine(t)
	raw, err := eng.InitialState()
	require.NoError(t, err)

	state := raw
	moves := []struct {
		side string
		cell int
	}{
		{"first", 1}, {"second", 4},
		{"first", 2}, {"second", 5},
		{"first", 3},
	}
	var result *Result
	for _, mv := range moves {
		result, err = eng.Apply(state, tttMove(mv.side, mv.cell))
		require.NoError(t, err, "move %+v", mv)
		state = result.State
	}

	assert.Equal(t, "win", result.Outcome)

	var final tttState
	require.NoError(t, json.Unmarshal(state, &final))
	assert.True(t, final.Over)

	// No further moves once the game is over.
	_, err = eng.Apply(state, tttMove("second", 6))
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestTicTacToe_Draw(t *testing.T) {
	eng := newTTTEngine(t)
	raw, err := eng.InitialState()
	require.NoError(t, err)

	// X O X / X O O / O X X ends with no line of three.
	state := raw
	moves := []struct {
		side string
		cell int
	}{
		{"first", 1}, {"second", 2},
		{"first", 3}, {"second", 5},
		{"first", 4}, {"second", 6},
		{"first", 8}, {"second", 7},
		{"first", 9},
	}
	var result *Result
	for _, mv := range moves {
		result, err = eng.Apply(state, tttMove(mv.side, mv.cell))
		require.NoError(t, err, "move %+v", mv)
		state = result.State
	}
	assert.Equal(t, "draw", result.Outcome)
}
