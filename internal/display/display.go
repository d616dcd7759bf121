// Package display renders a room as plain terminal text for the solo and
// bot commands.
package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/rules"
)

const cellWidth = 11

// Styles contains styling for the board and hands.
type Styles struct {
	Header    lipgloss.Style
	Cell      lipgloss.Style
	Mine      lipgloss.Style
	Theirs    lipgloss.Style
	Empty     lipgloss.Style
	Winner    lipgloss.Style
	Status    lipgloss.Style
	Separator lipgloss.Style
}

// NewStyles creates the default palette.
func NewStyles() *Styles {
	return &Styles{
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 2).
			Bold(true),
		Cell: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Width(cellWidth).
			Align(lipgloss.Center),
		Mine: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true),
		Theirs: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true),
		Empty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")),
		Winner: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true),
		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#74B9FF")),
		Separator: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")),
	}
}

// Renderer draws rooms from one participant's point of view.
type Renderer struct {
	styles *Styles
}

// NewRenderer creates a renderer with the default styles.
func NewRenderer() *Renderer {
	return &Renderer{styles: NewStyles()}
}

// Render draws the whole room as seen by role.
func (r *Renderer) Render(room *match.Room, role rules.Role) string {
	if room == nil {
		return r.styles.Empty.Render("room no longer exists")
	}

	var b strings.Builder
	b.WriteString(r.styles.Header.Render(room.Name))
	b.WriteString("\n")
	b.WriteString(r.Players(room, role))
	b.WriteString("\n")

	g := room.Game
	if g == nil || g.Phase == match.PhaseWaiting {
		b.WriteString(r.styles.Status.Render("Waiting for an opponent..."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(r.Board(g.Board, role))
	b.WriteString("\n")
	b.WriteString(r.Hand(g.Hand(role), role))
	b.WriteString("\n")
	b.WriteString(r.Status(g, role))
	b.WriteString("\n")
	return b.String()
}

// Players lists both seats with presence, scores and cumulative wins.
func (r *Renderer) Players(room *match.Room, role rules.Role) string {
	parts := make([]string, 0, len(rules.Roles))
	for _, seat := range rules.Roles {
		name := room.DisplayName(seat)
		if name == "" {
			name = "(open)"
		}
		if seat == role {
			name += " (You)"
		}
		presence := "online"
		if !room.Online(seat) {
			presence = "offline"
		}
		score, wins := 0, 0
		if room.Game != nil {
			score, wins = room.Game.Score(seat), room.Game.Wins(seat)
		}
		line := fmt.Sprintf("%s %s • %d cells • %d wins • %s", seat, name, score, wins, presence)
		parts = append(parts, r.ownerStyle(seat, role).Render(line))
	}
	return strings.Join(parts, r.styles.Separator.Render("  |  "))
}

// Board draws the 3x3 grid. Empty cells show their position number.
func (r *Renderer) Board(board rules.Board, role rules.Role) string {
	rows := make([]string, 0, rules.BoardWidth)
	for row := 0; row < rules.BoardWidth; row++ {
		cells := make([]string, 0, rules.BoardWidth)
		for col := 0; col < rules.BoardWidth; col++ {
			pos := row*rules.BoardWidth + col
			cells = append(cells, r.cell(board.At(pos), pos, role))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (r *Renderer) cell(card *rules.PlacedCard, pos int, role rules.Role) string {
	if card == nil {
		body := r.styles.Empty.Render(fmt.Sprintf("\n%d\n\n", pos))
		return r.styles.Cell.Render(body)
	}
	body := strings.Join([]string{
		fmt.Sprintf("%d", card.Top),
		fmt.Sprintf("%d   %d", card.Left, card.Right),
		fmt.Sprintf("%d", card.Bottom),
		card.Name,
	}, "\n")
	return r.styles.Cell.
		BorderForeground(r.ownerStyle(card.Owner, role).GetForeground()).
		Render(r.ownerStyle(card.Owner, role).Render(body))
}

// Hand lists the cards role may play, indexed for move input.
func (r *Renderer) Hand(hand []rules.HandCard, role rules.Role) string {
	if len(hand) == 0 {
		return r.styles.Empty.Render("Hand: (empty)")
	}
	cards := make([]string, len(hand))
	for i, c := range hand {
		cards[i] = fmt.Sprintf("[%d] %s", i, c.Card)
	}
	return "Hand: " + r.ownerStyle(role, role).Render(strings.Join(cards, "  "))
}

// Status describes whose turn it is or how the round ended.
func (r *Renderer) Status(g *match.Game, role rules.Role) string {
	switch g.Phase {
	case match.PhaseCountdown:
		return r.styles.Status.Render("Both players here. Dealing shortly...")
	case match.PhasePlaying:
		if g.CurrentTurn == role {
			return r.styles.Status.Render("Your turn: enter <position> <hand index>")
		}
		return r.styles.Status.Render("Opponent is thinking...")
	case match.PhaseRoundEnd:
		return r.styles.Winner.Render(Result(g.RoundWinner, role))
	}
	return r.styles.Status.Render("Waiting for an opponent...")
}

// Result phrases a round winner from role's point of view.
func Result(w match.Winner, role rules.Role) string {
	switch {
	case w == match.WinnerDraw:
		return "It's a draw!"
	case string(w) == string(role):
		return "You win!"
	case w == "":
		return ""
	}
	return "You lose!"
}

func (r *Renderer) ownerStyle(owner, role rules.Role) lipgloss.Style {
	if owner == role {
		return r.styles.Mine
	}
	return r.styles.Theirs
}
