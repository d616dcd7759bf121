package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/quartz"
	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/rules"
	"github.com/lox/triadsync/internal/store"
	"github.com/rs/zerolog"
)

// View is what a participant's display renders.
type View struct {
	RoomID string
	Role   rules.Role
	// Room is the latest room document, nil before the first snapshot or
	// after the room is deleted.
	Room *match.Room
	// Connected is false while the store is unreachable.
	Connected bool
	// Gone is set once the room document has been deleted.
	Gone bool
}

// Game returns the game sub-document, if any.
func (v View) Game() *match.Game {
	if v.Room == nil {
		return nil
	}
	return v.Room.Game
}

// MyTurn reports whether the viewer may play now.
func (v View) MyTurn() bool {
	g := v.Game()
	return v.Connected && g != nil && g.Phase == match.PhasePlaying && g.CurrentTurn == v.Role
}

// Session is one participant seated in one room.
type Session struct {
	conn          store.Conn
	roomID        string
	key           string
	role          rules.Role
	participantID string
	name          string
	clock         quartz.Clock
	machine       match.Machine
	logger        zerolog.Logger

	mu      sync.RWMutex
	view    View
	started bool
	closed  bool
	watches map[chan View]struct{}

	wake   chan struct{}
	timer  *quartz.Timer
	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(conn store.Conn, roomID string, role rules.Role, participantID, name string, o options) *Session {
	return &Session{
		conn:          conn,
		roomID:        roomID,
		key:           RoomKey(roomID),
		role:          role,
		participantID: participantID,
		name:          name,
		clock:         o.clock,
		machine:       match.NewMachine(o.timings),
		logger: o.logger.With().
			Str("component", "session").
			Str("room", roomID).
			Str("role", role.String()).
			Logger(),
		view:    View{RoomID: roomID, Role: role},
		watches: make(map[chan View]struct{}),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Role returns the seat this session plays.
func (s *Session) Role() rules.Role { return s.role }

// RoomID returns the room this session is seated in.
func (s *Session) RoomID() string { return s.roomID }

// Start marks the participant online, arms the offline-on-disconnect patch
// and begins following the room. It returns once the first snapshot has
// been requested; views arrive through Subscribe.
func (s *Session) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	defer func() {
		if err != nil {
			s.mu.Lock()
			s.started = false
			s.mu.Unlock()
		}
	}()

	res, err := updateRoom(ctx, s.conn, s.roomID, func(cur *match.Room) (*match.Room, error) {
		return match.Enter(cur, s.role, s.participantID, s.name, s.clock.Now())
	})
	if err != nil {
		return s.fail(fmt.Errorf("enter room: %w", err))
	}
	if !res.Committed {
		return store.Cause(res.Reason)
	}

	patch := store.Patch{match.OnlineField(s.role): false}
	if err := s.conn.OnDisconnect(ctx, s.key, patch); err != nil {
		return s.fail(fmt.Errorf("register disconnect patch: %w", err))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	updates, err := s.conn.Subscribe(runCtx, s.key)
	if err != nil {
		cancel()
		return s.fail(fmt.Errorf("subscribe room: %w", err))
	}
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info().Msg("Session started")
	go s.run(runCtx, updates)
	return nil
}

// fail records a store outage before returning err.
func (s *Session) fail(err error) error {
	if errors.Is(err, store.ErrUnavailable) || errors.Is(err, store.ErrClosed) {
		s.setConnected(false)
	}
	return err
}

func (s *Session) run(ctx context.Context, updates <-chan store.Snapshot) {
	defer close(s.done)
	defer s.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				if ctx.Err() == nil {
					s.logger.Warn().Msg("Room subscription ended")
					s.setConnected(false)
				}
				return
			}
			s.apply(ctx, snap)
		case <-s.wake:
			s.tick(ctx)
		}
	}
}

// apply publishes a snapshot and schedules or performs the next automatic
// transition.
func (s *Session) apply(ctx context.Context, snap store.Snapshot) {
	room, err := DecodeRoom(snap)
	if err != nil {
		s.logger.Error().Err(err).Msg("Dropping undecodable room snapshot")
		return
	}

	s.mu.Lock()
	s.view.Connected = true
	s.view.Room = room
	s.view.Gone = room == nil
	view := s.copyViewLocked()
	s.mu.Unlock()
	s.publish(view)

	if room == nil {
		s.logger.Info().Msg("Room deleted")
		s.stopTimer()
		return
	}
	s.schedule(room)
	s.tick(ctx)
}

func (s *Session) schedule(room *match.Room) {
	s.stopTimer()
	deadline, ok := match.NextDeadline(room)
	if !ok {
		return
	}
	wait := deadline.Sub(s.clock.Now())
	if wait <= 0 {
		return
	}
	timer := s.clock.AfterFunc(wait, func() {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}, "session", "deadline")

	s.mu.Lock()
	s.timer = timer
	s.mu.Unlock()
}

func (s *Session) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// tick advances the room when a timed or automatic transition is due.
func (s *Session) tick(ctx context.Context) {
	s.mu.RLock()
	room := s.view.Room
	s.mu.RUnlock()
	if room == nil || !s.machine.Due(room, s.clock.Now()) {
		return
	}

	res, err := updateRoom(ctx, s.conn, s.roomID, func(cur *match.Room) (*match.Room, error) {
		return s.machine.Advance(cur, s.clock.Now())
	})
	switch {
	case err != nil:
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("Advance failed")
			_ = s.fail(err)
		}
	case !res.Committed:
		s.logger.Debug().Err(res.Reason).Str("phase", string(room.Phase())).Msg("Advance skipped")
	default:
		s.logger.Debug().Str("from", string(room.Phase())).Msg("Advanced room")
	}
}

// AttemptMove plays the hand card at handIndex onto position. The move is
// checked against the latest view first, so obviously illegal moves never
// reach the store; the store write re-checks it against the committed
// document.
func (s *Session) AttemptMove(ctx context.Context, position, handIndex int) error {
	s.mu.RLock()
	view, started, closed := s.view, s.started, s.closed
	s.mu.RUnlock()

	switch {
	case closed:
		return ErrClosed
	case !started:
		return ErrNotStarted
	case view.Gone:
		return ErrRoomGone
	case !view.Connected:
		return ErrStoreUnavailable
	}
	if err := match.ValidateMove(view.Game(), s.role, position, handIndex); err != nil {
		return err
	}

	res, err := updateRoom(ctx, s.conn, s.roomID, func(cur *match.Room) (*match.Room, error) {
		return s.machine.PlayCard(cur, s.role, position, handIndex, s.clock.Now())
	})
	if err != nil {
		if errors.Is(s.fail(err), store.ErrUnavailable) {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return fmt.Errorf("play card: %w", err)
	}
	if !res.Committed {
		return store.Cause(res.Reason)
	}

	s.logger.Debug().Int("position", position).Int("hand_index", handIndex).Msg("Card played")
	return nil
}

// Snapshot returns the current view.
func (s *Session) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyViewLocked()
}

func (s *Session) copyViewLocked() View {
	v := s.view
	v.Room = s.view.Room.Clone()
	return v
}

// Subscribe streams views, starting with the current one. Slow readers
// only ever see the most recent view. Call the returned function to stop.
func (s *Session) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.watches[ch] = struct{}{}
	ch <- s.copyViewLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.watches[ch]; ok {
				delete(s.watches, ch)
				close(ch)
			}
		})
	}
}

func (s *Session) publish(view View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watches {
		select {
		case <-ch:
		default:
		}
		ch <- view
	}
}

func (s *Session) setConnected(connected bool) {
	s.mu.Lock()
	if s.view.Connected == connected {
		s.mu.Unlock()
		return
	}
	s.view.Connected = connected
	view := s.copyViewLocked()
	s.mu.Unlock()

	if !connected {
		s.logger.Warn().Msg("Store unreachable")
	}
	s.publish(view)
}

// Leave marks the participant offline and stops following the room. View
// subscriptions are closed.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started, cancel := s.started, s.cancel
	s.mu.Unlock()

	var errs []error
	if started {
		if cancel != nil {
			cancel()
			<-s.done
		}
		_, err := updateRoom(ctx, s.conn, s.roomID, func(cur *match.Room) (*match.Room, error) {
			return match.SetOnline(cur, s.role, false, s.clock.Now())
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("mark offline: %w", err))
		}
		if err := s.conn.CancelOnDisconnect(ctx, s.key); err != nil {
			errs = append(errs, fmt.Errorf("cancel disconnect patch: %w", err))
		}
	}

	s.mu.Lock()
	for ch := range s.watches {
		close(ch)
	}
	s.watches = nil
	s.mu.Unlock()

	s.logger.Info().Msg("Left room")
	return errors.Join(errs...)
}
