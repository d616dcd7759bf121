package rules

import "fmt"

// Card is an immutable catalog entry with four directional capture strengths.
type Card struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Level  int    `json:"level"`
	Top    int    `json:"top"`
	Bottom int    `json:"bottom"`
	Left   int    `json:"left"`
	Right  int    `json:"right"`
}

func (c Card) String() string {
	return fmt.Sprintf("%s[%d %d %d %d]", c.Name, c.Top, c.Right, c.Bottom, c.Left)
}

// HandCard is a card held by a participant. Owner decides who may play it.
type HandCard struct {
	Card
	Owner Role `json:"owner"`
}

// PlacedCard is a card sitting on the board.
type PlacedCard struct {
	Card
	Owner    Role `json:"owner"`
	Position int  `json:"position"`
}

// WithOwner returns a copy of p owned by role.
func (p PlacedCard) WithOwner(role Role) PlacedCard {
	p.Owner = role
	return p
}

// Hand tags every card with owner.
func Hand(cards []Card, owner Role) []HandCard {
	hand := make([]HandCard, len(cards))
	for i, c := range cards {
		hand[i] = HandCard{Card: c, Owner: owner}
	}
	return hand
}
