package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func card(id, top, right, bottom, left int) Card {
	return Card{ID: id, Name: "c", Level: 1, Top: top, Right: right, Bottom: bottom, Left: left}
}

func place(t *testing.T, b Board, c Card, owner Role, pos int) Board {
	t.Helper()
	b, err := b.Place(HandCard{Card: c, Owner: owner}, pos)
	require.NoError(t, err)
	return b
}

func TestNeighbors(t *testing.T) {
	tests := []struct {
		pos  int
		want []int
	}{
		{0, []int{3, 1}},
		{1, []int{4, 0, 2}},
		{2, []int{5, 1}},
		{4, []int{1, 7, 3, 5}},
		{6, []int{3, 7}},
		{8, []int{5, 7}},
		{9, nil},
		{-1, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Neighbors(tt.pos), "position %d", tt.pos)
	}
}

func TestApplyCaptureFacingValues(t *testing.T) {
	tests := []struct {
		name     string
		neighbor int
		placed   Card
		other    Card
		flips    bool
	}{
		{"above beaten by top", 1, card(1, 5, 1, 1, 1), card(2, 1, 1, 4, 1), true},
		{"below beaten by bottom", 7, card(1, 1, 1, 5, 1), card(2, 4, 1, 1, 1), true},
		{"left beaten by left", 3, card(1, 1, 1, 1, 5), card(2, 1, 4, 1, 1), true},
		{"right beaten by right", 5, card(1, 1, 5, 1, 1), card(2, 1, 1, 1, 4), true},
		{"tie never flips", 1, card(1, 4, 9, 9, 9), card(2, 9, 9, 4, 9), false},
		{"weaker facing value", 5, card(1, 9, 2, 9, 9), card(2, 9, 9, 9, 3), false},
		{"wrong side compared", 1, card(1, 1, 9, 9, 9), card(2, 9, 9, 2, 9), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Board
			b = place(t, b, tt.other, Guest, tt.neighbor)
			b = place(t, b, tt.placed, Host, 4)

			out := ApplyCapture(b, 4)
			want := Guest
			if tt.flips {
				want = Host
			}
			assert.Equal(t, want, out[tt.neighbor].Owner)
			assert.Equal(t, tt.other.ID, out[tt.neighbor].ID)
			assert.Equal(t, Guest, b[tt.neighbor].Owner, "input board must not change")
		})
	}
}

func TestApplyCaptureTieBelow(t *testing.T) {
	// top=4 placed directly below a card with bottom=4
	var b Board
	b = place(t, b, card(1, 9, 9, 4, 9), Guest, 1)
	b = place(t, b, card(2, 4, 1, 1, 1), Host, 4)

	out := ApplyCapture(b, 4)
	assert.Equal(t, b, out)
}

func TestApplyCaptureSingleHop(t *testing.T) {
	// A row of guest cards that the host card beats on every side, with the
	// far cells also beatable by the flipped middle neighbours.
	strong := card(1, 9, 9, 9, 9)
	weak := card(2, 1, 1, 1, 1)

	var b Board
	b = place(t, b, weak, Guest, 3)
	b = place(t, b, weak, Guest, 5)
	b = place(t, b, card(3, 1, 1, 1, 1), Guest, 0)
	b = place(t, b, card(4, 1, 1, 1, 1), Guest, 6)
	b = place(t, b, strong, Host, 4)

	out := ApplyCapture(b, 4)
	assert.Equal(t, Host, out[3].Owner)
	assert.Equal(t, Host, out[5].Owner)
	assert.Equal(t, Guest, out[0].Owner, "capture must not chain")
	assert.Equal(t, Guest, out[6].Owner, "capture must not chain")
}

func TestApplyCaptureIgnoresOwnCards(t *testing.T) {
	var b Board
	b = place(t, b, card(1, 1, 1, 1, 1), Host, 1)
	b = place(t, b, card(2, 9, 9, 9, 9), Host, 4)

	out := ApplyCapture(b, 4)
	assert.Equal(t, Host, out[1].Owner)
}

func TestApplyCaptureEmptyPosition(t *testing.T) {
	var b Board
	b = place(t, b, card(1, 1, 1, 1, 1), Guest, 1)
	assert.Equal(t, b, ApplyCapture(b, 4))
	assert.Equal(t, b, ApplyCapture(b, 42))
}

// Every cell other than the neighbours of the placed card keeps its identity
// and owner; neighbours keep their identity.
func TestApplyCapturePreservesIdentity(t *testing.T) {
	cards := []Card{
		card(1, 3, 7, 2, 5), card(2, 8, 1, 4, 6), card(3, 2, 2, 9, 3),
		card(4, 5, 5, 5, 5), card(5, 7, 3, 6, 1), card(6, 1, 8, 3, 7),
		card(7, 4, 6, 1, 9), card(8, 6, 4, 7, 2), card(9, 9, 9, 8, 4),
	}

	for pos := 0; pos < BoardSize; pos++ {
		var b Board
		for i := 0; i < BoardSize; i++ {
			if i == pos {
				continue
			}
			owner := Guest
			if i%2 == 0 {
				owner = Host
			}
			b = place(t, b, cards[i], owner, i)
		}
		b = place(t, b, cards[pos], Host, pos)

		out := ApplyCapture(b, pos)
		require.Equal(t, b.Filled(), out.Filled())
		assert.Equal(t, *b[pos], *out[pos])

		adjacent := map[int]bool{}
		for _, n := range Neighbors(pos) {
			adjacent[n] = true
		}
		for i := 0; i < BoardSize; i++ {
			assert.Equal(t, b[i].Card, out[i].Card)
			assert.Equal(t, i, out[i].Position)
			if !adjacent[i] {
				assert.Equal(t, b[i].Owner, out[i].Owner)
			}
		}
	}
}

func TestPlace(t *testing.T) {
	var b Board
	b, err := b.Place(HandCard{Card: card(1, 1, 1, 1, 1), Owner: Host}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, b[0].Position)

	_, err = b.Place(HandCard{Card: card(2, 1, 1, 1, 1), Owner: Guest}, 0)
	assert.ErrorIs(t, err, ErrPositionOccupied)

	_, err = b.Place(HandCard{Card: card(2, 1, 1, 1, 1), Owner: Guest}, 9)
	assert.ErrorIs(t, err, ErrPositionOutOfRange)
}

func TestOutcome(t *testing.T) {
	var b Board
	for i := 0; i < BoardSize; i++ {
		owner := Host
		if i >= 5 {
			owner = Guest
		}
		b = place(t, b, card(i+1, 1, 1, 1, 1), owner, i)
	}
	require.True(t, b.Full())
	assert.Equal(t, BoardSize, b.Count(Host)+b.Count(Guest))

	winner, ok := Outcome(b)
	assert.True(t, ok)
	assert.Equal(t, Host, winner)

	var empty Board
	_, ok = Outcome(empty)
	assert.False(t, ok)
}
