package rules

import "errors"

const (
	// BoardSize is the number of cells on the board.
	BoardSize = 9
	// BoardWidth is the number of columns (and rows).
	BoardWidth = 3
)

var (
	ErrPositionOutOfRange = errors.New("position out of range")
	ErrPositionOccupied   = errors.New("position already occupied")
)

// Board holds the nine cells row-major. A nil cell is empty. Board is a value
// type; the pointers it holds are never mutated in place, so copying a Board
// is enough to isolate two snapshots.
type Board [BoardSize]*PlacedCard

// InRange reports whether position addresses a cell.
func InRange(position int) bool {
	return position >= 0 && position < BoardSize
}

// At returns the card at position, or nil when empty or out of range.
func (b Board) At(position int) *PlacedCard {
	if !InRange(position) {
		return nil
	}
	return b[position]
}

// Empty reports whether position is on the board and unoccupied.
func (b Board) Empty(position int) bool {
	return InRange(position) && b[position] == nil
}

// Place puts card at position for its owner.
func (b Board) Place(card HandCard, position int) (Board, error) {
	if !InRange(position) {
		return b, ErrPositionOutOfRange
	}
	if b[position] != nil {
		return b, ErrPositionOccupied
	}
	b[position] = &PlacedCard{Card: card.Card, Owner: card.Owner, Position: position}
	return b, nil
}

// Filled returns the number of occupied cells.
func (b Board) Filled() int {
	n := 0
	for _, c := range b {
		if c != nil {
			n++
		}
	}
	return n
}

// Full reports whether every cell is occupied.
func (b Board) Full() bool {
	return b.Filled() == BoardSize
}

// Count returns how many placed cards role owns.
func (b Board) Count(role Role) int {
	n := 0
	for _, c := range b {
		if c != nil && c.Owner == role {
			n++
		}
	}
	return n
}

// EmptyPositions lists unoccupied positions in ascending order.
func (b Board) EmptyPositions() []int {
	var out []int
	for i, c := range b {
		if c == nil {
			out = append(out, i)
		}
	}
	return out
}

// Outcome compares owned cells. ok is false when the board is a draw.
func Outcome(b Board) (winner Role, ok bool) {
	host, guest := b.Count(Host), b.Count(Guest)
	switch {
	case host > guest:
		return Host, true
	case guest > host:
		return Guest, true
	default:
		return "", false
	}
}
