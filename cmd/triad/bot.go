package main

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lox/triadsync/cmd/triad/shared"
	"github.com/lox/triadsync/internal/client"
	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/randutil"
	"github.com/lox/triadsync/internal/session"
	"github.com/lox/triadsync/internal/solo"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const leaveTimeout = 5 * time.Second

// BotCmd runs random-move bots against a store server
type BotCmd struct {
	RemoteFlags `embed:""`

	Pair     bool          `kong:"help='Run a host and a guest bot against each other'"`
	Join     string        `kong:"help='Join this room id instead of creating one'"`
	Room     string        `kong:"default='bots',help='Name of the room to create'"`
	Password string        `kong:"help='Room password'"`
	Rounds   int           `kong:"default='3',help='Stop after this many finished rounds (0 plays forever)'"`
	Think    time.Duration `kong:"default='300ms',help='Pause before each move'"`
	Seed     *int64        `kong:"help='Deterministic seed for move choices (default $TRIAD_SEED)'"`
	Debug    bool          `kong:"help='Enable debug logging'"`
}

type botSeat struct {
	participantID string
	name          string
	joinRoom      string
	rng           *rand.Rand
	logger        zerolog.Logger
	onRoom        func(roomID string)
}

func (c *BotCmd) Run() error {
	logger := shared.SetupLogger(c.Debug)

	cfg, err := c.participantConfig()
	if err != nil {
		return err
	}
	seedFlag := c.Seed
	if seedFlag == nil {
		seedFlag = cfg.Seed
	}
	seed := randutil.Seed(seedFlag, time.Now())
	logger.Info().Int64("seed", seed).Str("server", cfg.ServerURL).Msg("Starting bots")

	ctx := shared.SetupSignalHandlerWithLogger(logger)

	if !c.Pair {
		return c.runBot(ctx, cfg, botSeat{
			participantID: cfg.ParticipantID,
			name:          cfg.Name,
			joinRoom:      c.Join,
			rng:           randutil.New(seed),
			logger:        logger.With().Str("bot", cfg.Name).Logger(),
		})
	}

	roomIDs := make(chan string, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		name := cfg.Name + "-host"
		return c.runBot(gctx, cfg, botSeat{
			participantID: uuid.NewString(),
			name:          name,
			joinRoom:      c.Join,
			rng:           randutil.New(seed),
			logger:        logger.With().Str("bot", name).Logger(),
			onRoom:        func(id string) { roomIDs <- id },
		})
	})
	g.Go(func() error {
		var roomID string
		select {
		case roomID = <-roomIDs:
		case <-gctx.Done():
			return nil
		}
		name := cfg.Name + "-guest"
		return c.runBot(gctx, cfg, botSeat{
			participantID: uuid.NewString(),
			name:          name,
			joinRoom:      roomID,
			rng:           randutil.New(seed + 1),
			logger:        logger.With().Str("bot", name).Logger(),
		})
	})
	return g.Wait()
}

func (c *BotCmd) runBot(ctx context.Context, cfg *client.Config, seat botSeat) error {
	conn, timings, err := c.connect(ctx, cfg, os.Stderr, c.Debug)
	if err != nil {
		return err
	}
	defer conn.Close()

	participantID := seat.participantID
	if !c.Pair {
		// paired bots share one token, so only a lone bot takes its identity
		participantID = actingAs(conn, participantID)
	}
	lobby := session.NewLobby(conn, participantID,
		session.WithTimings(timings),
		session.WithLogger(seat.logger),
	)

	var s *session.Session
	if seat.joinRoom != "" {
		s, err = lobby.JoinRoom(ctx, seat.joinRoom, c.Password, seat.name)
	} else {
		s, err = lobby.CreateRoom(ctx, c.Room, c.Password != "", c.Password, seat.name)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", seat.name, err)
	}
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("%s: %w", seat.name, err)
	}
	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
		defer cancel()
		if err := s.Leave(leaveCtx); err != nil {
			seat.logger.Warn().Err(err).Msg("Failed to leave room")
		}
	}()

	seat.logger.Info().Str("room", s.RoomID()).Str("role", s.Role().String()).Msg("Seated")
	if seat.onRoom != nil {
		seat.onRoom(s.RoomID())
	}
	return c.play(ctx, s, seat)
}

// play makes a random legal move whenever it is the bot's turn, until the
// requested number of rounds has finished.
func (c *BotCmd) play(ctx context.Context, s *session.Session, seat botSeat) error {
	views, stop := s.Subscribe()
	defer stop()

	finished := 0
	for {
		var v session.View
		select {
		case <-ctx.Done():
			return nil
		case view, ok := <-views:
			if !ok {
				return nil
			}
			v = view
		}

		if v.Gone {
			return fmt.Errorf("%s: %w", seat.name, session.ErrRoomGone)
		}
		g := v.Game()
		if g == nil {
			continue
		}

		if g.Phase == match.PhaseRoundEnd {
			if total := g.HostWins + g.GuestWins; total != finished {
				finished = total
				seat.logger.Info().
					Str("winner", string(g.RoundWinner)).
					Int("host_wins", g.HostWins).
					Int("guest_wins", g.GuestWins).
					Msg("Round finished")
				if c.Rounds > 0 && finished >= c.Rounds {
					return nil
				}
			}
			continue
		}
		if !v.MyTurn() {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.Think):
		}

		pos, idx, ok := solo.RandomMove(g, s.Role(), seat.rng)
		if !ok {
			continue
		}
		err := s.AttemptMove(ctx, pos, idx)
		switch {
		case err == nil:
			seat.logger.Debug().Int("position", pos).Int("hand_index", idx).Msg("Played card")
		case match.IsInvalidMove(err), errors.Is(err, session.ErrStoreUnavailable):
			seat.logger.Debug().Err(err).Msg("Move not applied, waiting for the next view")
		case errors.Is(err, context.Canceled):
			return nil
		default:
			return fmt.Errorf("%s: %w", seat.name, err)
		}
	}
}
