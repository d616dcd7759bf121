package match

import (
	"encoding/json"
	"time"

	"github.com/lox/triadsync/internal/rules"
)

// Phase is the coarse lifecycle stage of a game.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseCountdown Phase = "countdown"
	PhasePlaying   Phase = "playing"
	PhaseRoundEnd  Phase = "round_end"
)

// Winner records how a round finished.
type Winner string

const (
	WinnerHost  Winner = "host"
	WinnerGuest Winner = "guest"
	WinnerDraw  Winner = "draw"
)

// MarshalJSON encodes the zero Winner as null.
func (w Winner) MarshalJSON() ([]byte, error) {
	if w == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(w))
}

// UnmarshalJSON accepts null as the zero Winner.
func (w *Winner) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*w = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*w = Winner(s)
	return nil
}

// Game is the match sub-document of a room.
type Game struct {
	Phase          Phase            `json:"phase"`
	Board          rules.Board      `json:"board"`
	HostHand       []rules.HandCard `json:"hostHand"`
	GuestHand      []rules.HandCard `json:"guestHand"`
	HostScore      int              `json:"hostScore"`
	GuestScore     int              `json:"guestScore"`
	HostWins       int              `json:"hostWins"`
	GuestWins      int              `json:"guestWins"`
	CurrentTurn    rules.Role       `json:"currentTurn"`
	DealSeed       *int64           `json:"dealSeed"`
	CountdownEndAt *int64           `json:"countdownEndAt"`
	RoundEndAt     *int64           `json:"roundEndAt"`
	RoundWinner    Winner           `json:"roundWinner"`
}

// NewGame returns a game waiting for its second participant.
func NewGame() *Game {
	return &Game{
		Phase:     PhaseWaiting,
		HostHand:  []rules.HandCard{},
		GuestHand: []rules.HandCard{},
	}
}

// Hand returns the hand held by role.
func (g *Game) Hand(role rules.Role) []rules.HandCard {
	if role == rules.Host {
		return g.HostHand
	}
	return g.GuestHand
}

func (g *Game) setHand(role rules.Role, hand []rules.HandCard) {
	if role == rules.Host {
		g.HostHand = hand
	} else {
		g.GuestHand = hand
	}
}

// Score returns role's owned cells for the current round.
func (g *Game) Score(role rules.Role) int {
	if role == rules.Host {
		return g.HostScore
	}
	return g.GuestScore
}

// Wins returns role's cumulative round wins.
func (g *Game) Wins(role rules.Role) int {
	if role == rules.Host {
		return g.HostWins
	}
	return g.GuestWins
}

// CardsInPlay counts hand cards plus occupied cells.
func (g *Game) CardsInPlay() int {
	return len(g.HostHand) + len(g.GuestHand) + g.Board.Filled()
}

// Clone returns a copy that shares no mutable state with g.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	out := *g
	out.HostHand = append([]rules.HandCard{}, g.HostHand...)
	out.GuestHand = append([]rules.HandCard{}, g.GuestHand...)
	out.DealSeed = cloneInt(g.DealSeed)
	out.CountdownEndAt = cloneInt(g.CountdownEndAt)
	out.RoundEndAt = cloneInt(g.RoundEndAt)
	return &out
}

// Room is the shared document for one match.
type Room struct {
	ID                string `json:"-"`
	Name              string `json:"name"`
	PasswordProtected bool   `json:"passwordProtected"`
	Password          string `json:"password"`
	CreatedAt         int64  `json:"createdAt"`
	HostID            string `json:"hostId"`
	HostName          string `json:"hostName"`
	HostOnline        bool   `json:"hostOnline"`
	GuestID           string `json:"guestId"`
	GuestName         string `json:"guestName"`
	GuestOnline       bool   `json:"guestOnline"`
	LastActivityAt    int64  `json:"lastActivityAt"`
	EmptySince        *int64 `json:"emptySince"`
	Game              *Game  `json:"game"`
}

// Clone returns a deep copy of r.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	out := *r
	out.EmptySince = cloneInt(r.EmptySince)
	out.Game = r.Game.Clone()
	return &out
}

// RoleOf returns the role participantID holds in the room.
func (r *Room) RoleOf(participantID string) (rules.Role, bool) {
	switch {
	case participantID == "":
		return "", false
	case r.HostID == participantID:
		return rules.Host, true
	case r.GuestID == participantID:
		return rules.Guest, true
	}
	return "", false
}

// Online reports role's presence flag.
func (r *Room) Online(role rules.Role) bool {
	if role == rules.Host {
		return r.HostOnline
	}
	return r.GuestOnline
}

// DisplayName returns the name registered for role.
func (r *Room) DisplayName(role rules.Role) string {
	if role == rules.Host {
		return r.HostName
	}
	return r.GuestName
}

// Full reports whether both seats are taken.
func (r *Room) Full() bool {
	return r.HostID != "" && r.GuestID != ""
}

// Phase returns the game phase, treating a missing game as waiting.
func (r *Room) Phase() Phase {
	if r.Game == nil || r.Game.Phase == "" {
		return PhaseWaiting
	}
	return r.Game.Phase
}

// OnlineField is the document field holding role's presence flag.
func OnlineField(role rules.Role) string {
	if role == rules.Host {
		return "hostOnline"
	}
	return "guestOnline"
}

// Summary is the lobby view of a room. It never carries the password.
type Summary struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	PasswordProtected bool   `json:"passwordProtected"`
	Full              bool   `json:"full"`
	HostName          string `json:"hostName"`
	GuestName         string `json:"guestName,omitempty"`
	Phase             Phase  `json:"phase"`
	CreatedAt         int64  `json:"createdAt"`
}

// Summary builds the lobby view of r.
func (r *Room) Summary() Summary {
	return Summary{
		ID:                r.ID,
		Name:              r.Name,
		PasswordProtected: r.PasswordProtected,
		Full:              r.Full(),
		HostName:          r.HostName,
		GuestName:         r.GuestName,
		Phase:             r.Phase(),
		CreatedAt:         r.CreatedAt,
	}
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func millis(t time.Time) *int64 {
	ms := t.UnixMilli()
	return &ms
}

// reached reports whether now is at or past the deadline. A missing deadline
// is never reached.
func reached(deadline *int64, now time.Time) bool {
	return deadline != nil && now.UnixMilli() >= *deadline
}
