// Package rules implements the card-flipping rules shared by every game mode.
//
// A Board is nine cells laid out row-major on a 3x3 grid. Placing a card
// captures each orthogonally adjacent opposing card whose facing value is
// strictly lower than the placed card's facing value. Capture is single hop:
// a captured card never triggers further captures in the same placement.
//
// # Basic Usage
//
//	var board rules.Board
//	board, err := board.Place(card, 4)
//	if err != nil {
//	    return err
//	}
//	board = rules.ApplyCapture(board, 4)
//	host, guest := board.Count(rules.Host), board.Count(rules.Guest)
//
// Every function in this package is pure and integer-only so that two clients
// evaluating the same inputs always produce byte-identical boards.
package rules
