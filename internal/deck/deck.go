package deck

import (
	"time"

	"github.com/lox/triadsync/internal/rules"
)

// HandSize is the number of cards dealt to each role.
const HandSize = 5

// Deck is a seeded permutation of the catalog.
type Deck struct {
	cards []rules.Card
	rng   *LCG
}

// NewDeck creates a deck holding the catalog in canonical order. Call
// Shuffle to permute it.
func NewDeck(seed int64) *Deck {
	return &Deck{
		cards: Catalog(),
		rng:   NewLCG(seed),
	}
}

// Shuffle permutes the remaining cards with a Fisher-Yates pass from the end.
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.Intn(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// DealN removes and returns up to n cards from the top of the deck.
func (d *Deck) DealN(n int) []rules.Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}
	cards := make([]rules.Card, n)
	copy(cards, d.cards[:n])
	d.cards = d.cards[n:]
	return cards
}

// CardsRemaining returns the number of cards left in the deck
func (d *Deck) CardsRemaining() int {
	return len(d.cards)
}

// Deal returns the two opening hands for seed. The same seed yields the same
// hands, in the same order, on every client.
func Deal(seed int64) (host, guest []rules.HandCard) {
	d := NewDeck(seed)
	d.Shuffle()
	host = rules.Hand(d.DealN(HandSize), rules.Host)
	guest = rules.Hand(d.DealN(HandSize), rules.Guest)
	return host, guest
}

// NewSeed derives a deal seed from a wall-clock instant.
func NewSeed(now time.Time) int64 {
	return now.UnixMilli()
}
