package match

import (
	"time"

	"github.com/lox/triadsync/internal/deck"
	"github.com/lox/triadsync/internal/rules"
)

// StartingRole always moves first in a round.
const StartingRole = rules.Host

// StartCountdown moves a waiting game with both seats taken into countdown
// and picks a fresh deal seed.
func (m Machine) StartCountdown(r *Room, now time.Time) (*Room, error) {
	if r == nil {
		return nil, ErrRoomGone
	}
	if r.Phase() != PhaseWaiting || !r.Full() {
		return nil, ErrStale
	}

	out := r.Clone()
	if out.Game == nil {
		out.Game = NewGame()
	}
	seed := deck.NewSeed(now)
	out.Game.Phase = PhaseCountdown
	out.Game.CountdownEndAt = millis(now.Add(m.Timings.Countdown))
	out.Game.DealSeed = &seed
	return out, nil
}

// BeginRound deals the first round once the countdown has elapsed.
func (m Machine) BeginRound(r *Room, now time.Time) (*Room, error) {
	if r == nil {
		return nil, ErrRoomGone
	}
	if r.Phase() != PhaseCountdown || !reached(r.Game.CountdownEndAt, now) {
		return nil, ErrStale
	}

	out := r.Clone()
	seed := deck.NewSeed(now)
	if out.Game.DealSeed != nil {
		seed = *out.Game.DealSeed
	}
	DealRound(out.Game, seed)
	out.Game.CountdownEndAt = nil
	return out, nil
}

// NextRound re-deals with the next seed once the round-end pause is over.
func (m Machine) NextRound(r *Room, now time.Time) (*Room, error) {
	if r == nil {
		return nil, ErrRoomGone
	}
	if r.Phase() != PhaseRoundEnd || !reached(r.Game.RoundEndAt, now) {
		return nil, ErrStale
	}

	out := r.Clone()
	seed := deck.NewSeed(now)
	if out.Game.DealSeed != nil {
		seed = *out.Game.DealSeed
	}
	DealRound(out.Game, seed+1)
	return out, nil
}

// DealRound resets g to a fresh round dealt from seed. Cumulative wins are
// kept.
func DealRound(g *Game, seed int64) {
	host, guest := deck.Deal(seed)
	g.Phase = PhasePlaying
	g.DealSeed = &seed
	g.HostHand = host
	g.GuestHand = guest
	g.Board = rules.Board{}
	g.CurrentTurn = StartingRole
	g.HostScore = 0
	g.GuestScore = 0
	g.RoundWinner = ""
	g.RoundEndAt = nil
}

// ValidateMove checks a placement against g without changing anything.
func ValidateMove(g *Game, role rules.Role, position, handIndex int) error {
	fail := func(err error) error {
		return &InvalidMoveError{Role: role, Position: position, HandIndex: handIndex, Err: err}
	}
	switch {
	case g == nil || g.Phase != PhasePlaying:
		return fail(ErrNotPlaying)
	case g.CurrentTurn != role:
		return fail(ErrNotYourTurn)
	case !rules.InRange(position):
		return fail(ErrPositionOutOfRange)
	case g.Board[position] != nil:
		return fail(ErrPositionOccupied)
	case handIndex < 0 || handIndex >= len(g.Hand(role)):
		return fail(ErrHandIndexOutOfRange)
	}
	return nil
}

// PlayCard places role's hand card at position, applies captures and either
// passes the turn or closes the round when the board is full.
func (m Machine) PlayCard(r *Room, role rules.Role, position, handIndex int, now time.Time) (*Room, error) {
	if r == nil {
		return nil, ErrRoomGone
	}
	if err := ValidateMove(r.Game, role, position, handIndex); err != nil {
		return nil, err
	}

	out := r.Clone()
	g := out.Game
	hand := g.Hand(role)
	card := hand[handIndex]
	card.Owner = role

	board, err := g.Board.Place(card, position)
	if err != nil {
		return nil, &InvalidMoveError{Role: role, Position: position, HandIndex: handIndex, Err: err}
	}
	g.Board = rules.ApplyCapture(board, position)
	g.setHand(role, append(hand[:handIndex:handIndex], hand[handIndex+1:]...))
	g.HostScore = g.Board.Count(rules.Host)
	g.GuestScore = g.Board.Count(rules.Guest)

	if !g.Board.Full() {
		g.CurrentTurn = role.Other()
		return out, nil
	}

	winner, ok := rules.Outcome(g.Board)
	switch {
	case !ok:
		g.RoundWinner = WinnerDraw
	case winner == rules.Host:
		g.HostWins++
		g.RoundWinner = WinnerHost
	default:
		g.GuestWins++
		g.RoundWinner = WinnerGuest
	}
	g.Phase = PhaseRoundEnd
	g.CurrentTurn = ""
	g.RoundEndAt = millis(now.Add(m.Timings.RoundEnd))
	return out, nil
}

// Advance applies whichever automatic transition is due: starting the
// countdown, dealing the first round or dealing the next one.
func (m Machine) Advance(r *Room, now time.Time) (*Room, error) {
	if r == nil {
		return nil, ErrRoomGone
	}
	switch r.Phase() {
	case PhaseWaiting:
		return m.StartCountdown(r, now)
	case PhaseCountdown:
		return m.BeginRound(r, now)
	case PhaseRoundEnd:
		return m.NextRound(r, now)
	}
	return nil, ErrStale
}

// Due reports whether Advance would change r at now.
func (m Machine) Due(r *Room, now time.Time) bool {
	if r == nil {
		return false
	}
	switch r.Phase() {
	case PhaseWaiting:
		return r.Full()
	case PhaseCountdown:
		return reached(r.Game.CountdownEndAt, now)
	case PhaseRoundEnd:
		return reached(r.Game.RoundEndAt, now)
	}
	return false
}

// NextDeadline returns the instant at which the current timed phase ends.
func NextDeadline(r *Room) (time.Time, bool) {
	if r == nil || r.Game == nil {
		return time.Time{}, false
	}
	var at *int64
	switch r.Game.Phase {
	case PhaseCountdown:
		at = r.Game.CountdownEndAt
	case PhaseRoundEnd:
		at = r.Game.RoundEndAt
	}
	if at == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*at), true
}
