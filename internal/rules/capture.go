package rules

// Neighbors returns the orthogonal neighbors of position in the order up,
// down, left, right. Edges are skipped.
func Neighbors(position int) []int {
	if !InRange(position) {
		return nil
	}
	row, col := position/BoardWidth, position%BoardWidth
	adj := make([]int, 0, 4)
	if row > 0 {
		adj = append(adj, position-BoardWidth)
	}
	if row < BoardWidth-1 {
		adj = append(adj, position+BoardWidth)
	}
	if col > 0 {
		adj = append(adj, position-1)
	}
	if col < BoardWidth-1 {
		adj = append(adj, position+1)
	}
	return adj
}

// Beats reports whether card placed at position captures neighbor placed at
// neighborPos by comparing the two facing values. Ties never capture.
func Beats(card, neighbor Card, position, neighborPos int) bool {
	row, col := position/BoardWidth, position%BoardWidth
	nrow, ncol := neighborPos/BoardWidth, neighborPos%BoardWidth

	switch {
	case nrow == row+1 && ncol == col:
		return card.Bottom > neighbor.Top
	case nrow == row-1 && ncol == col:
		return card.Top > neighbor.Bottom
	case ncol == col+1 && nrow == row:
		return card.Right > neighbor.Left
	case ncol == col-1 && nrow == row:
		return card.Left > neighbor.Right
	}
	return false
}

// ApplyCapture flips every opposing neighbor that the card at position beats.
// It returns a new board and leaves the input untouched. Only direct
// neighbors are considered.
func ApplyCapture(board Board, position int) Board {
	placed := board.At(position)
	if placed == nil {
		return board
	}

	out := board
	for _, adj := range Neighbors(position) {
		neighbor := board[adj]
		if neighbor == nil || neighbor.Owner == placed.Owner {
			continue
		}
		if Beats(placed.Card, neighbor.Card, position, adj) {
			flipped := neighbor.WithOwner(placed.Owner)
			out[adj] = &flipped
		}
	}
	return out
}
