package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/rules"
	"github.com/lox/triadsync/internal/session"
)

type viewMsg struct{ view session.View }

type moveResultMsg struct{ err error }

// SessionBackend plays in a shared room through a started session.
type SessionBackend struct {
	ctx     context.Context
	session *session.Session
	views   <-chan session.View
	stop    func()
	view    session.View
}

// NewSessionBackend follows s until ctx is done.
func NewSessionBackend(ctx context.Context, s *session.Session) *SessionBackend {
	views, stop := s.Subscribe()
	return &SessionBackend{ctx: ctx, session: s, views: views, stop: stop, view: s.Snapshot()}
}

// Close stops following the session's views.
func (b *SessionBackend) Close() {
	b.stop()
}

func (b *SessionBackend) Init() tea.Cmd {
	return b.next()
}

func (b *SessionBackend) next() tea.Cmd {
	return func() tea.Msg {
		v, ok := <-b.views
		if !ok {
			return QuitMsg{}
		}
		return viewMsg{view: v}
	}
}

func (b *SessionBackend) State() (*match.Room, rules.Role) {
	return b.view.Room, b.session.Role()
}

func (b *SessionBackend) Move(position, handIndex int) tea.Cmd {
	return func() tea.Msg {
		return moveResultMsg{err: b.session.AttemptMove(b.ctx, position, handIndex)}
	}
}

func (b *SessionBackend) Handle(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case viewMsg:
		prev := b.view
		b.view = msg.view
		cmds := []tea.Cmd{b.next()}
		if n := notice(prev, msg.view); n != "" {
			cmds = append(cmds, func() tea.Msg { return NoticeMsg(n) })
		}
		return tea.Batch(cmds...)
	case moveResultMsg:
		if msg.err != nil {
			return func() tea.Msg { return ErrorMsg{Err: msg.err} }
		}
		return func() tea.Msg { return NoticeMsg("Card placed") }
	}
	return nil
}

// notice describes the interesting change between two views.
func notice(prev, cur session.View) string {
	switch {
	case cur.Gone && !prev.Gone:
		return "The room was closed"
	case !cur.Connected && prev.Connected:
		return "Lost connection to the store, moves are paused"
	case cur.Connected && !prev.Connected && prev.Room != nil:
		return "Reconnected"
	}
	if cur.Room == nil || prev.Room == nil {
		return ""
	}
	other := cur.Role.Other()
	if prev.Room.Online(other) && !cur.Room.Online(other) {
		return cur.Room.DisplayName(other) + " went offline"
	}
	if !prev.Room.Online(other) && cur.Room.Online(other) && cur.Room.DisplayName(other) != "" {
		return cur.Room.DisplayName(other) + " is here"
	}
	return ""
}
