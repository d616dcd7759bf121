package tui

import (
	rand "math/rand/v2"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lox/triadsync/internal/display"
	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/rules"
	"github.com/lox/triadsync/internal/solo"
)

// OpponentDelay is how long the solo opponent "thinks".
const OpponentDelay = 1500 * time.Millisecond

type opponentTurnMsg struct{ round int }

type replayMsg struct{ round int }

// SoloBackend plays against the local random opponent.
type SoloBackend struct {
	game  *solo.Game
	rng   *rand.Rand
	delay time.Duration
}

// NewSoloBackend wraps game. rng drives the opponent and the next deals.
func NewSoloBackend(game *solo.Game, rng *rand.Rand) *SoloBackend {
	return &SoloBackend{game: game, rng: rng, delay: OpponentDelay}
}

func (s *SoloBackend) Init() tea.Cmd { return nil }

func (s *SoloBackend) State() (*match.Room, rules.Role) {
	return s.game.Room(), solo.Player
}

func (s *SoloBackend) Move(position, handIndex int) tea.Cmd {
	if err := s.game.PlayerMove(position, handIndex); err != nil {
		return func() tea.Msg { return ErrorMsg{Err: err} }
	}
	return s.afterMove()
}

func (s *SoloBackend) afterMove() tea.Cmd {
	round := s.game.Round()
	if winner, over := s.game.Outcome(); over {
		wait := s.game.ReplayIn()
		notice := NoticeMsg(display.Result(winner, solo.Player) + " Next round shortly...")
		return tea.Batch(
			func() tea.Msg { return notice },
			tea.Tick(wait, func(time.Time) tea.Msg { return replayMsg{round: round} }),
		)
	}
	if s.game.State().CurrentTurn == solo.Opponent {
		return tea.Tick(s.delay, func(time.Time) tea.Msg { return opponentTurnMsg{round: round} })
	}
	return nil
}

func (s *SoloBackend) Handle(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case opponentTurnMsg:
		if msg.round != s.game.Round() {
			return nil
		}
		if _, _, err := s.game.OpponentMove(s.rng); err != nil {
			return func() tea.Msg { return ErrorMsg{Err: err} }
		}
		if cmd := s.afterMove(); cmd != nil {
			return cmd
		}
		return func() tea.Msg { return NoticeMsg("Your turn") }
	case replayMsg:
		if msg.round != s.game.Round() {
			return nil
		}
		s.game.Reset(s.rng.Int64())
		return func() tea.Msg { return NoticeMsg("New round dealt") }
	}
	return nil
}
