// Package solo runs a match against a local random opponent. It reuses the
// match state machine so placements, captures and scoring behave exactly as
// in a two-participant room.
package solo

import (
	"errors"
	rand "math/rand/v2"
	"time"

	"github.com/coder/quartz"
	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/rules"
)

const (
	// Player is the role of the person at the keyboard.
	Player = rules.Host
	// Opponent is the role of the random opponent.
	Opponent = rules.Guest
)

// ErrRoundOver is returned for moves made after the board filled up.
var ErrRoundOver = errors.New("round is over")

// Game is a single-player match. It is not safe for concurrent use.
type Game struct {
	machine match.Machine
	clock   quartz.Clock
	room    *match.Room
	rounds  int
}

// New deals the first round from seed.
func New(seed int64, clock quartz.Clock, timings match.Timings) *Game {
	if clock == nil {
		clock = quartz.NewReal()
	}
	g := &Game{
		machine: match.NewMachine(timings),
		clock:   clock,
		room: &match.Room{
			ID:          "solo",
			HostID:      "player",
			HostName:    "You",
			HostOnline:  true,
			GuestID:     "opponent",
			GuestName:   "Opponent",
			GuestOnline: true,
			Game:        match.NewGame(),
		},
	}
	g.deal(seed)
	return g
}

func (g *Game) deal(seed int64) {
	match.DealRound(g.room.Game, seed)
	g.rounds++
}

// State returns a copy of the current game.
func (g *Game) State() *match.Game {
	return g.room.Game.Clone()
}

// Room returns a copy of the local room, for rendering.
func (g *Game) Room() *match.Room {
	return g.room.Clone()
}

// Round returns the 1-based number of the round in play.
func (g *Game) Round() int {
	return g.rounds
}

// PlayerMove places the player's hand card at position.
func (g *Game) PlayerMove(position, handIndex int) error {
	return g.play(Player, position, handIndex)
}

// OpponentMove picks a random empty cell and a random hand card for the
// opponent and plays them.
func (g *Game) OpponentMove(rng *rand.Rand) (position, handIndex int, err error) {
	if g.room.Game.Phase != match.PhasePlaying {
		return 0, 0, ErrRoundOver
	}
	position, handIndex, ok := RandomMove(g.room.Game, Opponent, rng)
	if !ok {
		return 0, 0, ErrRoundOver
	}
	return position, handIndex, g.play(Opponent, position, handIndex)
}

// RandomMove picks a uniformly random empty cell and hand index for role.
// ok is false when the board or the hand is empty.
func RandomMove(g *match.Game, role rules.Role, rng *rand.Rand) (position, handIndex int, ok bool) {
	empty := g.Board.EmptyPositions()
	hand := g.Hand(role)
	if len(empty) == 0 || len(hand) == 0 {
		return 0, 0, false
	}
	return empty[rng.IntN(len(empty))], rng.IntN(len(hand)), true
}

func (g *Game) play(role rules.Role, position, handIndex int) error {
	if g.Over() {
		return ErrRoundOver
	}
	next, err := g.machine.PlayCard(g.room, role, position, handIndex, g.clock.Now())
	if err != nil {
		return err
	}
	g.room = next
	return nil
}

// Over reports whether the round has finished.
func (g *Game) Over() bool {
	return g.room.Game.Phase == match.PhaseRoundEnd
}

// Outcome reports the round winner once the board is full.
func (g *Game) Outcome() (match.Winner, bool) {
	if !g.Over() {
		return "", false
	}
	return g.room.Game.RoundWinner, true
}

// ReplayAt is when the finished round should be replaced by a new deal.
func (g *Game) ReplayAt() (time.Time, bool) {
	return match.NextDeadline(g.room)
}

// ReplayIn is how long until ReplayAt, zero when no replay is pending or it
// is already due.
func (g *Game) ReplayIn() time.Duration {
	at, ok := g.ReplayAt()
	if !ok {
		return 0
	}
	return max(at.Sub(g.clock.Now()), 0)
}

// Reset deals a new round from seed. Cumulative wins carry over.
func (g *Game) Reset(seed int64) {
	g.room = g.room.Clone()
	g.deal(seed)
}
