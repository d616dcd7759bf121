package deck

import "github.com/lox/triadsync/internal/rules"

// catalog is the fixed reference set every client knows ahead of a match.
// Order matters: the dealer permutes this slice by index.
var catalog = []rules.Card{
	{ID: 1, Name: "Ifrit", Level: 1, Top: 6, Bottom: 2, Left: 3, Right: 5},
	{ID: 2, Name: "Shiva", Level: 1, Top: 5, Bottom: 3, Left: 2, Right: 6},
	{ID: 3, Name: "Ramuh", Level: 1, Top: 4, Bottom: 4, Left: 4, Right: 4},
	{ID: 4, Name: "Siren", Level: 1, Top: 3, Bottom: 5, Left: 6, Right: 2},
	{ID: 5, Name: "Diablos", Level: 2, Top: 7, Bottom: 3, Left: 4, Right: 6},
	{ID: 6, Name: "Carbuncle", Level: 2, Top: 5, Bottom: 5, Left: 3, Right: 7},
	{ID: 7, Name: "Leviathan", Level: 2, Top: 6, Bottom: 4, Left: 7, Right: 3},
	{ID: 8, Name: "Pandemona", Level: 2, Top: 8, Bottom: 2, Left: 5, Right: 5},
	{ID: 9, Name: "Cerberus", Level: 3, Top: 7, Bottom: 5, Left: 6, Right: 6},
	{ID: 10, Name: "Alexander", Level: 3, Top: 8, Bottom: 4, Left: 7, Right: 5},
	{ID: 11, Name: "Phoenix", Level: 3, Top: 6, Bottom: 8, Left: 4, Right: 7},
	{ID: 12, Name: "Bahamut", Level: 4, Top: 9, Bottom: 6, Left: 8, Right: 7},
	{ID: 13, Name: "Tonberry", Level: 1, Top: 2, Bottom: 7, Left: 3, Right: 4},
	{ID: 14, Name: "Cactuar", Level: 1, Top: 1, Bottom: 8, Left: 1, Right: 8},
	{ID: 15, Name: "Malboro", Level: 2, Top: 6, Bottom: 3, Left: 7, Right: 4},
	{ID: 16, Name: "R. Dragon", Level: 3, Top: 7, Bottom: 7, Left: 5, Right: 5},
}

// Catalog returns a copy of the card catalog in canonical order.
func Catalog() []rules.Card {
	out := make([]rules.Card, len(catalog))
	copy(out, catalog)
	return out
}

// ByID looks up a catalog card.
func ByID(id int) (rules.Card, bool) {
	for _, c := range catalog {
		if c.ID == id {
			return c, true
		}
	}
	return rules.Card{}, false
}
